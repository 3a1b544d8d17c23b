package controllers

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ProxyController forwards the browser's SOS calls to the upstream server
// through the interception transport.
type ProxyController struct {
	proxy *httputil.ReverseProxy
}

func NewProxyController(target *url.URL, transport http.RoundTripper) *ProxyController {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Transport = transport
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logrus.WithFields(logrus.Fields{
			"path":  r.URL.Path,
			"error": err,
		}).Error("Edge proxy error")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"Bad Gateway"}`))
	}

	return &ProxyController{proxy: proxy}
}

func (pc *ProxyController) Forward(c *gin.Context) {
	pc.proxy.ServeHTTP(c.Writer, c.Request)
}
