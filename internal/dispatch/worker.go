package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/speak-service/internal/tts"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const handleMessageTimeout = 30 * time.Second

// Reply statuses.
const (
	StatusPlaying = "playing"
	StatusError   = "error"
)

// SpeakCommand is the request published on the speak subject.
type SpeakCommand struct {
	Header  events.EventHeader `json:"header"`
	Command Command            `json:"command"`
	Text    string             `json:"text"`
}

// SpeakReply answers a SpeakCommand once playback has started or the
// pipeline has failed.
type SpeakReply struct {
	Header     events.EventHeader `json:"header"`
	Status     string             `json:"status"`
	Error      string             `json:"error,omitempty"`
	StatusCode int                `json:"statusCode,omitempty"`
}

// NewSpeakCommand builds a command with a fresh event header.
func NewSpeakCommand(cmd Command, text, userID string) SpeakCommand {
	return SpeakCommand{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     userID,
			TenantID:   "",
		},
		Command: cmd,
		Text:    text,
	}
}

// NatsWorker serves speak commands on a NATS subject.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	dispatcher     *Dispatcher
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	dispatcher *Dispatcher,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		dispatcher:     dispatcher,
		log:            log,
	}
}

// Run subscribes and serves commands until ctx is done.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Listening for speak commands on %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	command, err := parseCommand(msg)
	if err != nil {
		w.log.Error("Failed to parse speak command: %v", err)
		w.respond(msg, SpeakReply{
			Header: events.EventHeader{Timestamp: time.Now(), EventID: uuid.NewString()},
			Status: StatusError,
			Error:  err.Error(),
		})

		return
	}

	w.log.Info("Received %s command for workflow %s", command.Command, command.Header.WorkflowID)

	reply := SpeakReply{Header: replyHeader(command.Header), Status: StatusPlaying}

	_, err = w.dispatcher.Dispatch(ctx, command.Command, StaticSelection(command.Text))
	if err != nil {
		reply.Status = StatusError
		reply.Error = err.Error()

		var statusErr *tts.StatusError
		if errors.As(err, &statusErr) {
			reply.StatusCode = statusErr.StatusCode
		}
	}

	w.respond(msg, reply)
}

func (w *NatsWorker) respond(msg *nats.Msg, reply SpeakReply) {
	if msg.Reply == "" {
		return
	}

	err := publishReply(msg, reply)
	if err != nil {
		w.log.Error("Failed to publish reply for workflow %s: %v", reply.Header.WorkflowID, err)
	}
}

// replyHeader keeps the workflow of the request and stamps a new event.
func replyHeader(request events.EventHeader) events.EventHeader {
	header := request
	header.Timestamp = time.Now()
	header.EventID = uuid.NewString()

	return header
}

func publishReply(msg *nats.Msg, reply SpeakReply) error {
	replyData, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply: %w", err)
	}

	return nil
}

func parseCommand(msg *nats.Msg) (*SpeakCommand, error) {
	var command SpeakCommand

	err := json.Unmarshal(msg.Data, &command)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal command: %w", err)
	}

	return &command, nil
}

// Request publishes cmd on subject and waits for the reply.
func Request(ctx context.Context, natsConnection *nats.Conn, subject string, cmd SpeakCommand) (*SpeakReply, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}

	msg, err := natsConnection.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("speak request on %s failed: %w", subject, err)
	}

	var reply SpeakReply

	err = json.Unmarshal(msg.Data, &reply)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal reply: %w", err)
	}

	return &reply, nil
}
