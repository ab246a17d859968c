package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrBinding       = errors.New("binding error")
	ErrReplica       = errors.New("replica failure")
	ErrSubmission    = errors.New("submission failure")
)

// Error is a build-time failure of a given kind
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

// Configf returns an ErrConfiguration error
func Configf(format string, args ...any) error {
	return &Error{Kind: ErrConfiguration, Msg: fmt.Sprintf(format, args...)}
}

// Bindingf returns an ErrBinding error
func Bindingf(format string, args ...any) error {
	return &Error{Kind: ErrBinding, Msg: fmt.Sprintf(format, args...)}
}

// IndexFailure is one failed replica of a fan-out step
type IndexFailure struct {
	Index int
	Key   string
	Err   error
}

// ReplicaError fails a fan-out phase. Every failed index is listed.
type ReplicaError struct {
	Step     string
	Total    int
	Failures []IndexFailure
}

func (e *ReplicaError) Error() string {
	failures := append([]IndexFailure(nil), e.Failures...)
	sort.Slice(failures, func(i, j int) bool { return failures[i].Index < failures[j].Index })
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		parts = append(parts, fmt.Sprintf("[%d] %s: %v", f.Index, f.Key, f.Err))
	}
	return fmt.Sprintf("%s: step %s: %d of %d replicas failed: %s",
		ErrReplica, e.Step, len(e.Failures), e.Total, strings.Join(parts, "; "))
}

func (e *ReplicaError) Unwrap() error { return ErrReplica }

// Indices returns the failed replica indices in ascending order
func (e *ReplicaError) Indices() []int {
	out := make([]int, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Index)
	}
	sort.Ints(out)
	return out
}

// DirFailure is one working directory whose submission failed
type DirFailure struct {
	Dir string
	Err error
}

// SubmissionError aggregates failed submissions across working directories
type SubmissionError struct {
	Total    int
	Failures []DirFailure
}

func (e *SubmissionError) Error() string {
	dirs := e.Dirs()
	return fmt.Sprintf("%s: %d of %d submissions failed: %s",
		ErrSubmission, len(dirs), e.Total, strings.Join(dirs, ", "))
}

func (e *SubmissionError) Unwrap() error { return ErrSubmission }

// Dirs returns failing directories in sorted order
func (e *SubmissionError) Dirs() []string {
	dirs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		dirs = append(dirs, f.Dir)
	}
	sort.Strings(dirs)
	return dirs
}
