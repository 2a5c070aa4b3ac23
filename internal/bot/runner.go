// Package bot runs one conversational bot inside one room: it joins the room
// transport, holds a Gemini Live session, and pumps audio and transcripts
// between the two until the participant leaves or the coordinator cancels it.
package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Anansitrading/chat-vrd-backend/internal/catalog"
	"github.com/Anansitrading/chat-vrd-backend/internal/gemini"
	"github.com/Anansitrading/chat-vrd-backend/internal/protocol"
	"github.com/Anansitrading/chat-vrd-backend/internal/rooms"
	"github.com/Anansitrading/chat-vrd-backend/internal/synth"
)

// State is the runner lifecycle phase.
type State string

const (
	StateConnecting  State = "connecting"
	StateJoined      State = "joined"
	StateActive      State = "active"
	StateTerminating State = "terminating"
	StateEnded       State = "ended"
)

// kickoffPrompt opens the conversation once the first participant arrives.
const kickoffPrompt = "Please greet the user and briefly introduce yourself."

// Options selects the optional pipeline stages for one session.
type Options struct {
	RoomName string
	Language string
	ModelID  string
	VoiceID  string

	TranscribeUser  bool
	TranscribeModel bool

	// Synth, when set, replaces the model's built-in audio: the live session
	// runs text-only and each completed turn is spoken through this stage.
	Synth synth.Synthesizer
}

// TranscriptFunc receives every transcript line the runner forwards, in
// addition to the room broadcast. Used for archiving.
type TranscriptFunc func(speaker protocol.Speaker, text string, tsMs int64)

// Runner drives one bot session.
type Runner struct {
	transport rooms.Transport
	dialer    gemini.Dialer
	opts      Options

	// OnTranscript is optional and must be set before Run.
	OnTranscript TranscriptFunc

	mu    sync.Mutex
	state State

	ready     chan struct{}
	readyOnce sync.Once
	readyErr  error

	cancel context.CancelFunc
}

// New builds a runner. Run must be called exactly once.
func New(transport rooms.Transport, dialer gemini.Dialer, opts Options) *Runner {
	return &Runner{
		transport: transport,
		dialer:    dialer,
		opts:      opts,
		state:     StateConnecting,
		ready:     make(chan struct{}),
	}
}

// Ready is closed once the bot has joined the room, or once setup has failed.
// It fires exactly once either way so callers never block past the outcome.
func (r *Runner) Ready() <-chan struct{} { return r.ready }

// ReadyErr reports the setup failure, if any, after Ready fires.
func (r *Runner) ReadyErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readyErr
}

// State returns the current lifecycle phase.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) signalReady(err error) {
	r.readyOnce.Do(func() {
		r.mu.Lock()
		r.readyErr = err
		r.mu.Unlock()
		close(r.ready)
	})
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// terminate is the single edge into Terminating. Both participant-left and
// call-state-left funnel here, so a second trigger is a no-op.
func (r *Runner) terminate(reason string) {
	r.mu.Lock()
	if r.state == StateTerminating || r.state == StateEnded {
		r.mu.Unlock()
		return
	}
	r.state = StateTerminating
	cancel := r.cancel
	r.mu.Unlock()

	log.Printf("bot: room=%s terminating (%s)", r.opts.RoomName, reason)
	if cancel != nil {
		cancel()
	}
}

// Run joins the room, opens the live session, and blocks until the session
// ends. The readiness signal always fires before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	defer r.setState(StateEnded)
	// Covers early cancellation paths; a no-op when readiness already fired.
	defer r.signalReady(fmt.Errorf("bot ended before joining room %s", r.opts.RoomName))

	if err := r.transport.Join(ctx); err != nil {
		err = fmt.Errorf("join room %s: %w", r.opts.RoomName, err)
		r.signalReady(err)
		return err
	}
	defer func() { _ = r.transport.Leave() }()

	session, err := r.dialer.Connect(ctx, gemini.SessionConfig{
		Model:             r.opts.ModelID,
		VoiceID:           r.opts.VoiceID,
		SystemInstruction: catalog.SystemInstruction(r.opts.Language, r.opts.VoiceID, catalog.ResolveModelType(r.opts.ModelID)),
		TranscribeUser:    r.opts.TranscribeUser,
		TranscribeModel:   r.opts.TranscribeModel,
		TextOnly:          r.opts.Synth != nil,
	})
	if err != nil {
		err = fmt.Errorf("connect live session for room %s: %w", r.opts.RoomName, err)
		r.signalReady(err)
		return err
	}
	defer func() { _ = session.Close() }()

	var (
		sawParticipant bool
		turnText       strings.Builder
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-r.transport.Events():
			if !ok {
				r.terminate("transport closed")
				return nil
			}
			switch ev.Type {
			case rooms.EventJoined:
				r.setState(StateJoined)
				r.signalReady(nil)
				r.broadcast(ctx, protocol.NewBotStatus("joined", ""))
				log.Printf("bot: room=%s joined model=%s voice=%s", r.opts.RoomName, r.opts.ModelID, r.opts.VoiceID)
			case rooms.EventParticipantJoined:
				if sawParticipant {
					continue
				}
				sawParticipant = true
				r.setState(StateActive)
				if err := session.SendText(ctx, kickoffPrompt); err != nil {
					log.Printf("bot: room=%s kickoff failed: %v", r.opts.RoomName, err)
				}
			case rooms.EventParticipantLeft:
				r.terminate("participant left")
			case rooms.EventCallState:
				if ev.State == "left" || ev.State == "ended" {
					r.terminate("call state " + ev.State)
				}
			}

		case pcm, ok := <-r.transport.AudioIn():
			if !ok {
				r.terminate("transport closed")
				return nil
			}
			if err := session.SendAudio(ctx, pcm); err != nil {
				log.Printf("bot: room=%s forward audio to model failed: %v", r.opts.RoomName, err)
			}

		case ev, ok := <-session.Events():
			if !ok {
				r.terminate("model session closed")
				return nil
			}
			r.handleModelEvent(ctx, ev, &turnText)
		}
	}
}

func (r *Runner) handleModelEvent(ctx context.Context, ev gemini.Event, turnText *strings.Builder) {
	switch ev.Type {
	case gemini.EventAudio:
		if err := r.transport.SendAudio(ctx, ev.PCM); err != nil {
			log.Printf("bot: room=%s play audio failed: %v", r.opts.RoomName, err)
		}

	case gemini.EventUserTranscript:
		r.forwardTranscript(ctx, protocol.SpeakerUser, ev.Text, ev.Timestamp)

	case gemini.EventAssistantTranscript:
		r.forwardTranscript(ctx, protocol.SpeakerAssistant, ev.Text, ev.Timestamp)

	case gemini.EventAssistantText:
		if r.opts.Synth == nil {
			return
		}
		turnText.WriteString(ev.Text)

	case gemini.EventTurnComplete:
		if r.opts.Synth == nil || turnText.Len() == 0 {
			return
		}
		text := turnText.String()
		turnText.Reset()
		r.forwardTranscript(ctx, protocol.SpeakerAssistant, text, time.Now().UnixMilli())
		pcm, err := r.opts.Synth.Speak(ctx, text)
		if err != nil {
			log.Printf("bot: room=%s external synthesis failed: %v", r.opts.RoomName, err)
			return
		}
		if len(pcm) == 0 {
			return
		}
		if err := r.transport.SendAudio(ctx, pcm); err != nil {
			log.Printf("bot: room=%s play synthesized audio failed: %v", r.opts.RoomName, err)
		}

	case gemini.EventError:
		log.Printf("bot: room=%s model stream error: %s", r.opts.RoomName, ev.Detail)
	}
}

// forwardTranscript broadcasts one transcript line. Delivery failures are
// logged and swallowed so a flaky client never tears down the session.
func (r *Runner) forwardTranscript(ctx context.Context, speaker protocol.Speaker, text string, tsMs int64) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if r.OnTranscript != nil {
		r.OnTranscript(speaker, text, tsMs)
	}
	msg := protocol.NewTranscript(speaker, text, r.opts.VoiceID, tsMs)
	if err := r.transport.SendAppMessage(ctx, msg); err != nil {
		log.Printf("bot: room=%s forward transcript failed: %v", r.opts.RoomName, err)
	}
}

func (r *Runner) broadcast(ctx context.Context, payload any) {
	if err := r.transport.SendAppMessage(ctx, payload); err != nil {
		log.Printf("bot: room=%s broadcast failed: %v", r.opts.RoomName, err)
	}
}
