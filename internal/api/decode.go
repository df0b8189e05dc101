package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"postcal/internal/model"
)

// wirePost mirrors the backend JSON. Pointer fields let us tell a missing
// key from a zero value.
type wirePost struct {
	ID            *int64  `json:"id"`
	Platform      *string `json:"platform"`
	Campaign      *string `json:"campaign"`
	Message       *string `json:"message"`
	ScheduledTime *string `json:"scheduledTime"`
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Posts json.RawMessage `json:"posts"`
}

// DecodePosts decodes a posts payload. Accepted shapes are
// {"data": [...]}, {"posts": [...]} and a bare array. An absent, null or
// empty list decodes to zero posts.
//
// Items missing id, platform, campaign or scheduledTime, or naming an
// unknown platform, fail the whole decode with a *DecodeError. The
// scheduledTime text is not parsed here.
func DecodePosts(body []byte) ([]model.Post, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return []model.Post{}, nil
	}

	var list json.RawMessage
	switch trimmed[0] {
	case '[':
		list = trimmed
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, &DecodeError{Index: -1, Reason: "invalid envelope", Err: err}
		}
		list = env.Data
		if isNull(list) {
			list = env.Posts
		}
	default:
		if string(trimmed) == "null" {
			return []model.Post{}, nil
		}
		return nil, &DecodeError{Index: -1, Reason: "payload is neither an object nor an array"}
	}

	if isNull(list) {
		return []model.Post{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(list, &items); err != nil {
		return nil, &DecodeError{Index: -1, Reason: "post list is not an array", Err: err}
	}

	posts := make([]model.Post, 0, len(items))
	for i, raw := range items {
		p, err := decodePost(i, raw)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func decodePost(index int, raw json.RawMessage) (model.Post, error) {
	var w wirePost
	if err := json.Unmarshal(raw, &w); err != nil {
		field := ""
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			field = typeErr.Field
		}
		return model.Post{}, &DecodeError{Index: index, Field: field, Reason: "wrong type", Err: err}
	}

	switch {
	case w.ID == nil:
		return model.Post{}, &DecodeError{Index: index, Field: "id", Reason: "missing"}
	case w.Platform == nil:
		return model.Post{}, &DecodeError{Index: index, Field: "platform", Reason: "missing"}
	case w.Campaign == nil:
		return model.Post{}, &DecodeError{Index: index, Field: "campaign", Reason: "missing"}
	case w.ScheduledTime == nil || strings.TrimSpace(*w.ScheduledTime) == "":
		return model.Post{}, &DecodeError{Index: index, Field: "scheduledTime", Reason: "missing"}
	}

	platform, err := model.ParsePlatform(*w.Platform)
	if err != nil {
		return model.Post{}, &DecodeError{Index: index, Field: "platform", Reason: "unknown value", Err: err}
	}

	p := model.Post{
		ID:            *w.ID,
		Platform:      platform,
		Campaign:      *w.Campaign,
		ScheduledTime: *w.ScheduledTime,
	}
	if w.Message != nil {
		p.Message = *w.Message
	}
	return p, nil
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || string(t) == "null"
}
