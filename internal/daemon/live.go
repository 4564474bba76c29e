package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"linkcheck/internal/catalog"
	"linkcheck/internal/logging"
	"linkcheck/internal/pipeline"
	"linkcheck/internal/services"
	"linkcheck/internal/session"
)

const (
	liveWriteTimeout = 10 * time.Second
	liveReadLimit    = 64 << 10
	// defaultMarketplace applies when neither the client nor the config
	// names one.
	defaultMarketplace = "www.amazon.com"
)

// wsConn adapts a WebSocket connection to session.Conn.
type wsConn struct {
	conn *websocket.Conn
}

// Send writes one JSON frame. The write is detached from ctx cancellation
// because a cancelled write tears down the whole connection.
func (c wsConn) Send(ctx context.Context, event session.Event) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), liveWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, c.conn, event)
}

// inboundFrame is one client message.
type inboundFrame struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// beginPayload carries the arguments of a beginProcessing request.
type beginPayload struct {
	URL         string `json:"url"`
	SessionID   string `json:"sessionId"`
	APIKey      string `json:"apiKey"`
	APISecret   string `json:"apiSecret"`
	PartnerTag  string `json:"partnerTag"`
	Marketplace string `json:"marketplace"`
}

// parseBeginPayload accepts an object, a positional array in the order
// [url, sessionId, apiKey, apiSecret, partnerTag, marketplace], or a bare
// URL string.
func parseBeginPayload(raw json.RawMessage) (beginPayload, error) {
	var payload beginPayload
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return payload, errors.New("beginProcessing requires a payload")
	}
	switch trimmed[0] {
	case '[':
		var args []json.RawMessage
		if err := json.Unmarshal(trimmed, &args); err != nil {
			return payload, fmt.Errorf("decode beginProcessing arguments: %w", err)
		}
		fields := []*string{
			&payload.URL,
			&payload.SessionID,
			&payload.APIKey,
			&payload.APISecret,
			&payload.PartnerTag,
			&payload.Marketplace,
		}
		for i, arg := range args {
			if i >= len(fields) {
				break
			}
			if bytes.Equal(bytes.TrimSpace(arg), []byte("null")) {
				continue
			}
			if err := json.Unmarshal(arg, fields[i]); err != nil {
				return payload, fmt.Errorf("decode beginProcessing argument %d: %w", i, err)
			}
		}
	case '"':
		if err := json.Unmarshal(trimmed, &payload.URL); err != nil {
			return payload, fmt.Errorf("decode beginProcessing url: %w", err)
		}
	default:
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return payload, fmt.Errorf("decode beginProcessing payload: %w", err)
		}
	}
	payload.URL = strings.TrimSpace(payload.URL)
	payload.SessionID = strings.TrimSpace(payload.SessionID)
	if payload.URL == "" {
		return payload, errors.New("beginProcessing requires an article url")
	}
	return payload, nil
}

// sessionReporter delivers a run's progress to the session that owns it.
type sessionReporter struct {
	registry  *session.Registry
	sessionID string
}

func (r sessionReporter) URLsScraped(ctx context.Context, count int) error {
	return r.registry.SendTo(ctx, r.sessionID, session.Event{Name: session.EventURLsScraped, Data: count})
}

func (r sessionReporter) Send(ctx context.Context, record pipeline.DisplayRecord) error {
	return r.registry.SendTo(ctx, r.sessionID, session.Event{Name: session.EventServerDataReceived, Data: record})
}

// handleLive upgrades the request and serves one session until the client
// goes away or the daemon stops.
func (d *Daemon) handleLive(w http.ResponseWriter, r *http.Request) {
	origins := d.cfg.Server.AllowedOrigins
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     origins,
		InsecureSkipVerify: len(origins) == 0 || slices.Contains(origins, "*"),
	})
	if err != nil {
		logging.WarnWithContext(d.logger, "websocket upgrade failed", "live_upgrade_failed",
			logging.String("remote", r.RemoteAddr),
			logging.Error(err),
		)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(liveReadLimit)

	sess := session.NewSession("", wsConn{conn: conn})
	d.registry.Add(sess)
	defer d.registry.Remove(sess.ID)

	ctx := services.WithSessionID(d.baseContext(), sess.ID)
	logger := logging.WithContext(ctx, d.logger)
	if err := sess.Send(ctx, session.Event{Name: session.EventConnected, Data: session.ConnectedData{SessionID: sess.ID}}); err != nil {
		logger.Debug("connected event not delivered", logging.Error(err))
		return
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				logger.Debug("session closed by client")
			default:
				if ctx.Err() == nil {
					logger.Debug("session read ended", logging.Error(err))
				}
			}
			return
		}
		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			d.sendError(ctx, sess, "malformed frame")
			continue
		}
		d.dispatch(ctx, sess, frame)
	}
}

func (d *Daemon) dispatch(ctx context.Context, sess *session.Session, frame inboundFrame) {
	switch frame.Name {
	case session.EventBeginProcessing:
		payload, err := parseBeginPayload(frame.Data)
		if err != nil {
			d.sendError(ctx, sess, err.Error())
			return
		}
		d.beginRun(ctx, sess, payload)
	case session.EventStopSignal:
		stopped := d.registry.Stop(sess.ID)
		logging.WithContext(ctx, d.logger).Info("stop signal received", logging.Int("runs", stopped))
	default:
		d.sendError(ctx, sess, "unknown event "+strings.TrimSpace(frame.Name))
	}
}

// beginRun starts a run owned by the payload's session, or by the sender
// when the payload names none. The sender can stop it either way.
func (d *Daemon) beginRun(ctx context.Context, sender *session.Session, payload beginPayload) {
	target := payload.SessionID
	if target == "" {
		target = sender.ID
	}
	if _, ok := d.registry.Get(target); !ok {
		d.sendError(ctx, sender, "unknown session "+target)
		return
	}
	base := d.baseContext()
	if base.Err() != nil {
		d.sendError(ctx, sender, "daemon shutting down")
		return
	}

	req := pipeline.Request{ArticleURL: payload.URL, Credentials: d.credentials(payload)}
	runCtx, runID, done := d.registry.BeginRunFor(base, target, sender.ID)
	d.runs.Add(1)
	go func() {
		defer d.runs.Done()
		defer done()
		d.executeRun(runCtx, runID, target, req)
	}()
}

func (d *Daemon) executeRun(ctx context.Context, runID, sessionID string, req pipeline.Request) {
	logger := logging.WithContext(ctx, d.logger)
	reporter := sessionReporter{registry: d.registry, sessionID: sessionID}
	outcome, err := d.runner.Process(ctx, runID, req, reporter)
	notifyCtx := context.WithoutCancel(ctx)
	if err != nil {
		stage := services.FailureStage(err)
		logging.ErrorWithContext(logger, "run failed", "run_failed",
			logging.String("stage", stage),
			logging.Error(err),
		)
		d.notify(notifyCtx, sessionID, session.Event{
			Name: session.EventRunFailed,
			Data: session.RunFailedData{RunID: runID, Stage: stage, Error: err.Error()},
		})
		return
	}

	if d.archive != nil {
		// Archive logs its own failures; the run itself still succeeded.
		_ = d.archive.Record(notifyCtx, sessionID, outcome)
	}
	d.notify(notifyCtx, sessionID, session.Event{
		Name: session.EventRunComplete,
		Data: session.RunCompleteData{
			RunID:     runID,
			Emitted:   len(outcome.Records),
			Dropped:   outcome.Stats.Dropped,
			Missing:   outcome.Stats.Missing,
			Cancelled: outcome.Cancelled,
		},
	})
}

// credentials fills gaps in client-supplied credentials from configuration.
func (d *Daemon) credentials(payload beginPayload) catalog.Credentials {
	creds := catalog.Credentials{
		AccessKey:   strings.TrimSpace(payload.APIKey),
		SecretKey:   strings.TrimSpace(payload.APISecret),
		PartnerTag:  strings.TrimSpace(payload.PartnerTag),
		Marketplace: strings.TrimSpace(payload.Marketplace),
	}
	if creds.AccessKey == "" && creds.SecretKey == "" {
		creds.AccessKey = d.cfg.Catalog.AccessKey
		creds.SecretKey = d.cfg.Catalog.SecretKey
	}
	if creds.PartnerTag == "" {
		creds.PartnerTag = d.cfg.Catalog.PartnerTag
	}
	if creds.Marketplace == "" {
		creds.Marketplace = d.cfg.Catalog.Marketplace
	}
	if creds.Marketplace == "" {
		creds.Marketplace = defaultMarketplace
	}
	return creds
}

func (d *Daemon) notify(ctx context.Context, sessionID string, event session.Event) {
	if err := d.registry.SendTo(ctx, sessionID, event); err != nil {
		logging.WithContext(ctx, d.logger).Debug("terminal event not delivered",
			logging.String("event", event.Name),
			logging.Error(err),
		)
	}
}

func (d *Daemon) sendError(ctx context.Context, sess *session.Session, message string) {
	if err := sess.Send(ctx, session.Event{Name: session.EventError, Data: map[string]string{"error": message}}); err != nil {
		logging.WithContext(ctx, d.logger).Debug("error event not delivered", logging.Error(err))
	}
}
