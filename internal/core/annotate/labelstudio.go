package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"prelabel/internal/core/match"
	"prelabel/internal/logger"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// LabelStudio writes spans as predictions of an HyperText labeling config
// (<Labels name="label" toName="html"/>) and attaches Meta to the task
// data as ml_meta.
type LabelStudio struct {
	baseURL string
	token   string
	client  *http.Client
	log     *logger.Logger
}

func NewLabelStudio(baseURL, token string) *LabelStudio {
	return &LabelStudio{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     logger.New("LabelStudio"),
	}
}

type resultValue struct {
	Start       string   `json:"start"`
	End         string   `json:"end"`
	StartOffset int      `json:"startOffset"`
	EndOffset   int      `json:"endOffset"`
	Labels      []string `json:"labels"`
	Text        string   `json:"text"`
}

type resultItem struct {
	ID       string      `json:"id"`
	FromName string      `json:"from_name"`
	ToName   string      `json:"to_name"`
	Type     string      `json:"type"`
	Origin   string      `json:"origin"`
	Value    resultValue `json:"value"`
}

type prediction struct {
	Task         int          `json:"task"`
	ModelVersion string       `json:"model_version"`
	Score        float64      `json:"score"`
	Result       []resultItem `json:"result"`
}

// results converts spans into Label Studio result items.
func results(spans []match.Span) []resultItem {
	out := make([]resultItem, 0, len(spans))
	for _, s := range spans {
		out = append(out, resultItem{
			ID:       uuid.New().String(),
			FromName: "label",
			ToName:   "html",
			Type:     "labels",
			Origin:   "prediction",
			Value: resultValue{
				Start:       s.NodeID,
				End:         s.NodeID,
				StartOffset: s.Start,
				EndOffset:   s.End,
				Labels:      []string{s.Label},
				Text:        s.Text,
			},
		})
	}
	return out
}

func (l *LabelStudio) Deliver(ctx context.Context, d Delivery) error {
	taskID, err := strconv.Atoi(d.TaskID)
	if err != nil {
		return errors.Newf("label studio task id must be numeric, got %q", d.TaskID)
	}

	score := 0.0
	if len(d.Spans) > 0 {
		score = 1.0
	}
	pred := prediction{Task: taskID, ModelVersion: d.Model, Score: score, Result: results(d.Spans)}
	if err := l.send(ctx, http.MethodPost, "/api/predictions", pred, nil); err != nil {
		return errors.Wrapf(err, "save predictions for task %d", taskID)
	}
	l.log.LogInfof("stored %d predictions for task %d", len(pred.Result), taskID)

	if err := l.attachMeta(ctx, taskID, d.Meta); err != nil {
		return errors.Wrapf(err, "attach meta to task %d", taskID)
	}
	return nil
}

// attachMeta reads the task data and writes it back with ml_meta set, so
// the other data keys survive.
func (l *LabelStudio) attachMeta(ctx context.Context, taskID int, meta Meta) error {
	path := fmt.Sprintf("/api/tasks/%d", taskID)
	var task struct {
		Data map[string]any `json:"data"`
	}
	if err := l.send(ctx, http.MethodGet, path, nil, &task); err != nil {
		return err
	}
	if task.Data == nil {
		task.Data = map[string]any{}
	}
	task.Data["ml_meta"] = meta
	return l.send(ctx, http.MethodPatch, path, map[string]any{"data": task.Data}, nil)
}

func (l *LabelStudio) send(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, l.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+l.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
