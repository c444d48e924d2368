package download

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/ytget/soft-downloader/internal/model"
)

// progressPayload is the wire shape of DOWNLOAD_PROGRESS. Older backends
// spell the transferred field "transfered".
type progressPayload struct {
	DownloadID   json.RawMessage `json:"download_id"`
	FileSize     *float64        `json:"filesize"`
	Transferred  *float64        `json:"transferred"`
	Transfered   *float64        `json:"transfered"`
	TransferRate *float64        `json:"transfer_rate"`
	Percentage   *float64        `json:"percentage"`
}

type failurePayload struct {
	DownloadID json.RawMessage `json:"download_id"`
	Error      string          `json:"error"`
	Message    string          `json:"message"`
}

// DecodeProgress decodes a DOWNLOAD_PROGRESS payload. download_id is required
// and may be a string or a number; sizes and rates must not be negative.
func DecodeProgress(payload []byte) (model.ProgressSnapshot, error) {
	var p progressPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return model.ProgressSnapshot{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.DownloadID == nil && p.FileSize == nil && p.Percentage == nil {
		return model.ProgressSnapshot{}, fmt.Errorf("%w: not a progress object", ErrMalformedPayload)
	}

	id, err := parseDownloadID(p.DownloadID)
	if err != nil {
		return model.ProgressSnapshot{}, err
	}
	if id == "" {
		return model.ProgressSnapshot{}, fmt.Errorf("%w: download_id missing", ErrMalformedPayload)
	}

	transferred := p.Transferred
	if transferred == nil {
		transferred = p.Transfered
	}

	snap := model.ProgressSnapshot{DownloadID: id}
	if snap.FileSize, err = byteCount("filesize", p.FileSize); err != nil {
		return model.ProgressSnapshot{}, err
	}
	if snap.Transferred, err = byteCount("transferred", transferred); err != nil {
		return model.ProgressSnapshot{}, err
	}
	if snap.TransferRate, err = nonNegative("transfer_rate", p.TransferRate); err != nil {
		return model.ProgressSnapshot{}, err
	}
	if snap.Percentage, err = nonNegative("percentage", p.Percentage); err != nil {
		return model.ProgressSnapshot{}, err
	}
	return snap, nil
}

// DecodeCompletion decodes a DOWNLOAD_FINISHED payload. An empty, null or
// id-less payload is valid and yields a Completion without an id.
func DecodeCompletion(payload []byte) (model.Completion, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return model.Completion{}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return model.Completion{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	id, err := parseDownloadID(raw["download_id"])
	if err != nil {
		return model.Completion{}, err
	}
	return model.Completion{DownloadID: id, HasID: id != ""}, nil
}

// DecodeFailure decodes a DOWNLOAD_FAILED payload; download_id is required
func DecodeFailure(payload []byte) (model.Failure, error) {
	var p failurePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return model.Failure{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	id, err := parseDownloadID(p.DownloadID)
	if err != nil {
		return model.Failure{}, err
	}
	if id == "" {
		return model.Failure{}, fmt.Errorf("%w: download_id missing", ErrMalformedPayload)
	}

	msg := p.Error
	if msg == "" {
		msg = p.Message
	}
	if msg == "" {
		msg = "backend reported an error"
	}
	return model.Failure{DownloadID: id, Message: msg}, nil
}

// parseDownloadID accepts a JSON string or number; absent and null give ""
func parseDownloadID(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}

	if trimmed[0] == '"' {
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return "", fmt.Errorf("%w: download_id: %v", ErrMalformedPayload, err)
		}
		return strings.TrimSpace(id), nil
	}

	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err == nil {
		return number.String(), nil
	}

	return "", fmt.Errorf("%w: unsupported download_id format: %s", ErrMalformedPayload, string(trimmed))
}

func nonNegative(field string, v *float64) (float64, error) {
	if v == nil {
		return 0, nil
	}
	if *v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, fmt.Errorf("%w: %s out of range: %v", ErrMalformedPayload, field, *v)
	}
	return *v, nil
}

func byteCount(field string, v *float64) (uint64, error) {
	f, err := nonNegative(field, v)
	if err != nil {
		return 0, err
	}
	if f >= 1<<64 {
		return 0, fmt.Errorf("%w: %s too large", ErrMalformedPayload, field)
	}
	return uint64(f), nil
}
