// Package server contains the JSON payloads shared by the HTTP interfaces.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"net/http"
	"strconv"
	"strings"
)

// FloatT is a struct with a single F64 field
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is a struct with a single Int field
type IntT struct {
	Int int `json:"int"`
}

// StrT is a struct with a single Str field
type StrT struct {
	Str string `json:"str"`
}

// BoolT is a struct with a single Bool field
type BoolT struct {
	Bool bool `json:"bool"`
}

// HumanPayload holds one basic value returned by an instrument.
// T selects the field that is encoded.
type HumanPayload struct {
	T      types.BasicKind
	Float  float64
	Int    int
	String string
	Bool   bool
}

func (hp HumanPayload) value() interface{} {
	switch hp.T {
	case types.Float64:
		return FloatT{F64: hp.Float}
	case types.Int:
		return IntT{Int: hp.Int}
	case types.String:
		return StrT{Str: hp.String}
	case types.Bool:
		return BoolT{Bool: hp.Bool}
	}
	return nil
}

func (hp HumanPayload) text() string {
	switch hp.T {
	case types.Float64:
		return strconv.FormatFloat(hp.Float, 'G', -1, 64)
	case types.Int:
		return strconv.Itoa(hp.Int)
	case types.String:
		return hp.String
	case types.Bool:
		return strconv.FormatBool(hp.Bool)
	}
	return ""
}

// EncodeAndRespond writes the payload as JSON, or as plain text when the
// client asks for text/plain
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "text/plain") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, hp.text())
		return
	}
	v := hp.value()
	if v == nil {
		http.Error(w, fmt.Sprintf("payload kind %v not understood", hp.T), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

// RespondJSON encodes v as the response body
func RespondJSON(w http.ResponseWriter, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
