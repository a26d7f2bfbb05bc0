// internal/app/system/jsonutil/jsonutil.go

// Package jsonutil renders the JSON response envelope used by every API
// handler. All responses share the same shape so clients can branch on
// the success flag without inspecting status codes.
package jsonutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Envelope is the uniform response body.
type Envelope struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Pagination describes the page window of a list response.
type Pagination struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
	NextPage    *int  `json:"nextPage"`
	PrevPage    *int  `json:"prevPage"`
}

// NewPagination computes the derived fields from page, limit, and total.
// Page and limit are assumed already clamped by the caller.
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	p := Pagination{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
	if p.HasNextPage {
		n := page + 1
		p.NextPage = &n
	}
	if p.HasPrevPage {
		n := page - 1
		p.PrevPage = &n
	}
	return p
}

// Paged wraps list items together with their pagination window.
type Paged struct {
	Items      interface{} `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

func write(w http.ResponseWriter, status int, env Envelope) {
	env.Timestamp = time.Now().UTC()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// OK writes a success envelope with the given message and data.
func OK(w http.ResponseWriter, message string, data interface{}) {
	write(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// Created writes a 201 success envelope.
func Created(w http.ResponseWriter, message string, data interface{}) {
	write(w, http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// OKPaged writes a success envelope whose data is a paged list.
func OKPaged(w http.ResponseWriter, message string, items interface{}, p Pagination) {
	write(w, http.StatusOK, Envelope{Success: true, Message: message, Data: Paged{Items: items, Pagination: p}})
}

// Fail writes a failure envelope with the given status and message.
func Fail(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope{Success: false, Message: message})
}

// BadRequest writes a 400 failure envelope.
func BadRequest(w http.ResponseWriter, message string) {
	Fail(w, http.StatusBadRequest, message)
}

// Unauthorized writes a 401 failure envelope.
func Unauthorized(w http.ResponseWriter, message string) {
	Fail(w, http.StatusUnauthorized, message)
}

// Forbidden writes a 403 failure envelope.
func Forbidden(w http.ResponseWriter, message string) {
	Fail(w, http.StatusForbidden, message)
}

// NotFound writes a 404 failure envelope.
func NotFound(w http.ResponseWriter, message string) {
	Fail(w, http.StatusNotFound, message)
}

// Conflict writes a 409 failure envelope.
func Conflict(w http.ResponseWriter, message string) {
	Fail(w, http.StatusConflict, message)
}

// TooManyRequests writes a 429 failure envelope.
func TooManyRequests(w http.ResponseWriter, message string) {
	Fail(w, http.StatusTooManyRequests, message)
}

// ServerError writes a 500 failure envelope. Internal detail stays in
// the logs; clients get a generic message.
func ServerError(w http.ResponseWriter) {
	Fail(w, http.StatusInternalServerError, "internal server error")
}

// DecodeBody decodes a JSON request body into dst, rejecting unknown
// fields and trailing garbage.
func DecodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// A second token means the body contained more than one JSON value.
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
