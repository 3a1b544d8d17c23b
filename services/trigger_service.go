package services

import (
	"aaisaheb/models"
	"context"
	"math"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"
)

// ShakeDetector turns accelerometer samples into an activation once enough
// strong movements fall inside a rolling window.
type ShakeDetector struct {
	mutex       sync.Mutex
	threshold   float64
	required    int
	window      time.Duration
	minInterval time.Duration

	lastSample time.Time
	lastX      float64
	lastY      float64
	lastZ      float64
	hasLast    bool
	hits       []time.Time
}

func NewShakeDetector(threshold float64, required int, window time.Duration) *ShakeDetector {
	if threshold <= 0 {
		threshold = 15
	}
	if required <= 0 {
		required = 3
	}
	if window <= 0 {
		window = 2 * time.Second
	}
	return &ShakeDetector{
		threshold:   threshold,
		required:    required,
		window:      window,
		minInterval: 100 * time.Millisecond,
	}
}

// Sample feeds one reading taken at now. It returns true when a shake fires.
func (d *ShakeDetector) Sample(x, y, z float64, now time.Time) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.hasLast {
		d.lastX, d.lastY, d.lastZ = x, y, z
		d.lastSample = now
		d.hasLast = true
		return false
	}
	if now.Sub(d.lastSample) <= d.minInterval {
		return false
	}
	d.lastSample = now

	delta := math.Abs(x-d.lastX) + math.Abs(y-d.lastY) + math.Abs(z-d.lastZ)
	d.lastX, d.lastY, d.lastZ = x, y, z
	if delta <= d.threshold {
		return false
	}

	d.hits = append(d.hits, now)
	d.expire(now)
	if len(d.hits) >= d.required {
		d.hits = nil
		return true
	}
	return false
}

func (d *ShakeDetector) expire(now time.Time) {
	kept := d.hits[:0]
	for _, t := range d.hits {
		if now.Sub(t) < d.window {
			kept = append(kept, t)
		}
	}
	d.hits = kept
}

var (
	DefaultEmergencyPhrases = []string{
		"help me", "emergency", "sos", "call police",
		"मदद करो", "आपातकाल", "पुलिस बुलाओ",
	}
	DefaultSafeWords = []string{
		"safe", "cancel", "stop",
		"रद्द करो", "रोको", "सुरक्षित",
	}
)

// PhraseMatcher matches whole-word phrases in a speech transcript.
type PhraseMatcher struct {
	phrases [][]string
}

func NewPhraseMatcher(phrases []string) *PhraseMatcher {
	pm := &PhraseMatcher{}
	for _, p := range phrases {
		if tokens := tokenize(p); len(tokens) > 0 {
			pm.phrases = append(pm.phrases, tokens)
		}
	}
	return pm
}

func (pm *PhraseMatcher) Match(transcript string) (string, bool) {
	words := tokenize(transcript)
	for _, phrase := range pm.phrases {
		if containsSequence(words, phrase) {
			return strings.Join(phrase, " "), true
		}
	}
	return "", false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r))
	})
}

func containsSequence(words, phrase []string) bool {
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j := range phrase {
			if words[i+j] != phrase[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// PanicGesture fires after repeated volume-down presses in a short window.
type PanicGesture struct {
	mutex    sync.Mutex
	required int
	window   time.Duration
	presses  []time.Time
}

func NewPanicGesture(required int, window time.Duration) *PanicGesture {
	if required <= 0 {
		required = 5
	}
	if window <= 0 {
		window = 2 * time.Second
	}
	return &PanicGesture{required: required, window: window}
}

// IsPanicKey reports whether a key event counts as a volume-down press.
func IsPanicKey(code string, ctrl bool) bool {
	return code == "VolumeDown" || (ctrl && code == "Minus")
}

func (g *PanicGesture) Press(now time.Time) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	kept := g.presses[:0]
	for _, t := range g.presses {
		if now.Sub(t) < g.window {
			kept = append(kept, t)
		}
	}
	g.presses = append(kept, now)

	if len(g.presses) >= g.required {
		g.presses = nil
		return true
	}
	return false
}

// SOSController is the part of the SOS service driven by triggers.
type SOSController interface {
	RequestActivation(source models.ActivationSource) bool
	Cancel(ctx context.Context, reason string) error
}

// SOSControlTarget identifies key events aimed at the SOS button.
const SOSControlTarget = "sos-button"

// TriggerService routes raw UI and sensor events to the SOS state machine.
type TriggerService struct {
	sos       SOSController
	shake     *ShakeDetector
	emergency *PhraseMatcher
	safe      *PhraseMatcher
	gesture   *PanicGesture
	clock     Clock
}

func NewTriggerService(sos SOSController, shake *ShakeDetector, gesture *PanicGesture, clock Clock) *TriggerService {
	if shake == nil {
		shake = NewShakeDetector(0, 0, 0)
	}
	if gesture == nil {
		gesture = NewPanicGesture(0, 0)
	}
	if clock == nil {
		clock = RealClock()
	}
	return &TriggerService{
		sos:       sos,
		shake:     shake,
		emergency: NewPhraseMatcher(DefaultEmergencyPhrases),
		safe:      NewPhraseMatcher(DefaultSafeWords),
		gesture:   gesture,
		clock:     clock,
	}
}

func (ts *TriggerService) Activate(source models.ActivationSource) bool {
	started := ts.sos.RequestActivation(source)
	logrus.WithFields(logrus.Fields{
		"source":  source,
		"started": started,
	}).Info("SOS trigger received")
	return started
}

func (ts *TriggerService) HandleMotion(x, y, z float64) bool {
	if ts.shake.Sample(x, y, z, ts.clock.Now()) {
		return ts.Activate(models.SourceShake)
	}
	return false
}

func (ts *TriggerService) HandleKey(code string, ctrl bool, target string) bool {
	if IsPanicKey(code, ctrl) {
		if ts.gesture.Press(ts.clock.Now()) {
			return ts.Activate(models.SourcePanic)
		}
		return false
	}
	if target == SOSControlTarget && (code == "Space" || code == "Enter") {
		return ts.Activate(models.SourceKeyboard)
	}
	return false
}

// HandleVoice activates on an emergency phrase, otherwise cancels on a safe
// word. An emergency phrase always wins.
func (ts *TriggerService) HandleVoice(ctx context.Context, transcript string) bool {
	if phrase, ok := ts.emergency.Match(transcript); ok {
		logrus.WithField("phrase", phrase).Info("Voice command matched emergency phrase")
		return ts.Activate(models.SourceVoice)
	}
	if phrase, ok := ts.safe.Match(transcript); ok {
		logrus.WithField("phrase", phrase).Info("Voice command matched safe word")
		if err := ts.sos.Cancel(ctx, DefaultCancelReason); err != nil {
			logrus.WithError(err).Debug("Voice cancel had no effect")
			return false
		}
		return true
	}
	return false
}

func (ts *TriggerService) HandleCancel(ctx context.Context, reason string) error {
	return ts.sos.Cancel(ctx, reason)
}
