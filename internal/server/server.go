// Package server exposes key activations over HTTP. Each session owns an
// edge detector that turns posted activation vectors into note events.
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/cbegin/midiroll-go/internal/audio"
	"github.com/cbegin/midiroll-go/internal/edge"
	"github.com/cbegin/midiroll-go/internal/keys"
	"github.com/cbegin/midiroll-go/internal/midimsg"
	"github.com/cbegin/midiroll-go/internal/synth"
)

// DefaultSession serves requests posted to the root path.
const DefaultSession = "default"

const maxBody = 1 << 16

var log = logrus.WithField("component", "server")

type Options struct {
	SampleRate     int
	IdleRelease    time.Duration
	AllowedOrigins []string
	// NewSynthesizer builds a fresh synthesizer for each render request.
	NewSynthesizer func() (*synth.Synthesizer, error)
	// Listeners hear every session's events as they happen.
	Listeners []edge.Listener
	// Now defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	opts     Options
	mu       sync.Mutex
	sessions map[string]*session
	handler  http.Handler
}

type session struct {
	mu       sync.Mutex
	id       string
	started  time.Time
	detector *edge.Detector
	sustain  bool
	// lastTime is the latest logged step time; the log never goes back.
	lastTime float64
	debounce func(func())
}

func New(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = keys.SampleRate
	}
	s := &Server{opts: opts, sessions: make(map[string]*session)}

	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/", s.handleDefaultActivation).Methods("POST")
	router.HandleFunc("/sessions", s.handleCreate).Methods("POST")
	router.HandleFunc("/sessions/{id}/activation", s.handleActivation).Methods("POST")
	router.HandleFunc("/sessions/{id}/events", s.handleEvents).Methods("GET")
	router.HandleFunc("/sessions/{id}/render", s.handleRender).Methods("POST")
	router.HandleFunc("/sessions/{id}", s.handleDelete).Methods("DELETE")

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.handler = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
	}).Handler(router)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe blocks serving addr.
func (s *Server) ListenAndServe(addr string) error {
	log.Infof("listening on %s", addr)
	return http.ListenAndServe(addr, s)
}

func (s *Server) newSession(id string) *session {
	sess := &session{id: id, started: s.opts.Now()}
	sess.detector = edge.New(s.opts.Listeners...)
	if s.opts.IdleRelease > 0 {
		sess.debounce = debounce.New(s.opts.IdleRelease)
	}
	return sess
}

func (s *Server) lookup(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, true
	}
	if id == DefaultSession {
		sess := s.newSession(id)
		s.sessions[id] = sess
		return sess, true
	}
	return nil, false
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()
	s.mu.Lock()
	s.sessions[id] = s.newSession(id)
	s.mu.Unlock()

	log.WithField("session", id).Debug("created")
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDefaultActivation(w http.ResponseWriter, r *http.Request) {
	s.activate(w, r, DefaultSession)
}

func (s *Server) handleActivation(w http.ResponseWriter, r *http.Request) {
	s.activate(w, r, mux.Vars(r)["id"])
}

func (s *Server) activate(w http.ResponseWriter, r *http.Request, id string) {
	sess, ok := s.lookup(id)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	act, err := parseActivation(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := sess.step(act, s.opts.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if sess.debounce != nil {
		sess.debounce(sess.release(s.opts.Now))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": midimsg.ToRecords(events)})
}

func (sess *session) step(act activation, now time.Time) ([]midimsg.Message, error) {
	vec, skipped := act.vector()
	for _, k := range skipped {
		log.WithField("session", sess.id).Warnf("invalid key id: %d", k)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	t := max(now.Sub(sess.started).Seconds(), sess.lastTime)
	if act.Time != nil {
		t = *act.Time
		if t < 0 {
			return nil, errors.Wrapf(ErrBadActivation, "time %g", t)
		}
		if t < sess.lastTime {
			return nil, errors.Wrapf(ErrBadActivation, "time %g is before the previous step at %g", t, sess.lastTime)
		}
	}
	if act.Sustain != nil {
		sess.sustain = *act.Sustain
	}
	events, err := sess.detector.StepKeys(vec, sess.sustain, t)
	if err != nil {
		return nil, err
	}
	sess.lastTime = t
	return events, nil
}

// release returns a callback lifting every key and the pedal.
func (sess *session) release(now func() time.Time) func() {
	return func() {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		active, sustain := sess.detector.Active()
		if active == [keys.NumKeys]bool{} && !sustain {
			return
		}
		sess.sustain = false
		t := max(now().Sub(sess.started).Seconds(), sess.lastTime)
		events, err := sess.detector.StepKeys([keys.NumKeys]bool{}, false, t)
		if err != nil {
			log.WithField("session", sess.id).Warnf("idle release: %v", err)
			return
		}
		sess.lastTime = t
		log.WithField("session", sess.id).Debugf("idle release emitted %d events", len(events))
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": midimsg.ToRecords(sess.events())})
}

func (sess *session) events() []midimsg.Message {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.detector.All()
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	events := sess.events()
	if len(events) == 0 || midimsg.OnlySustain(events) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if s.opts.NewSynthesizer == nil {
		http.Error(w, "rendering disabled", http.StatusNotImplemented)
		return
	}
	sy, err := s.opts.NewSynthesizer()
	if err != nil {
		log.Errorf("new synthesizer: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer sy.Close()
	samples, err := sy.Render(events)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	if _, err := w.Write(audio.EncodeWAVInt16LE(samples, sy.SampleRate(), 1)); err != nil {
		log.Debugf("write render: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("encode response: %v", err)
	}
}
