package pagarme

import (
	"bytes"
	"encoding/json"
	"errors"
)

var (
	// ErrMalformedPayload means the body is not JSON at all.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrNoTransaction means the body is JSON but carries no transaction.
	ErrNoTransaction = errors.New("no transaction in payload")
)

type envelope map[string]json.RawMessage

// extractor pulls the candidate transaction object out of one envelope
// shape.
type extractor struct {
	name    string
	extract func(root envelope, body []byte) json.RawMessage
}

// extractors are tried in order; the first candidate that decodes into a
// transaction with a status wins.
var extractors = []extractor{
	{name: "transaction", extract: func(root envelope, _ []byte) json.RawMessage {
		return root["transaction"]
	}},
	{name: "data.object", extract: func(root envelope, _ []byte) json.RawMessage {
		var data envelope
		if err := json.Unmarshal(root["data"], &data); err != nil {
			return nil
		}
		return data["object"]
	}},
	{name: "data", extract: func(root envelope, _ []byte) json.RawMessage {
		return root["data"]
	}},
	{name: "direct", extract: func(_ envelope, body []byte) json.RawMessage {
		return body
	}},
}

// ExtractTransaction finds the transaction in a postback body. It returns
// the decoded transaction, its raw JSON and the name of the shape matched.
func ExtractTransaction(body []byte) (*Transaction, json.RawMessage, string, error) {
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, nil, "", ErrMalformedPayload
	}

	var root envelope
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, nil, "", ErrNoTransaction
	}

	for _, ex := range extractors {
		raw := ex.extract(root, body)
		if len(raw) == 0 || raw[0] != '{' {
			continue
		}
		var tx Transaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			continue
		}
		if tx.Status == "" {
			continue
		}
		return &tx, raw, ex.name, nil
	}
	return nil, nil, "", ErrNoTransaction
}
