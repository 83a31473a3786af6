package models

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// randomSuffix returns a short random identifier suffix.
func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = idAlphabet[rand.Intn(len(idAlphabet))]
	}
	return string(b)
}

// newID builds an identifier of form <prefix>-<base36 timestamp>-<random 6>.
func newID(prefix string) string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	return prefix + "-" + ts + "-" + randomSuffix(6)
}

// NewTaskID returns a fresh parent task identifier.
func NewTaskID() string {
	return newID("task")
}

// NewWorkerID returns a fresh worker identifier.
func NewWorkerID() string {
	return newID("worker")
}

// NewManagerID returns a fresh manager identifier.
func NewManagerID() string {
	return newID("manager")
}

// NewPRID returns a fresh pull request identifier.
func NewPRID() string {
	return newID("pr")
}

// NewRunID returns a fresh run identifier used to scope audit logs.
func NewRunID() string {
	return newID("run")
}

// SubTaskID derives the id of the n-th sub-task (1-indexed) of a parent.
// Sequence numbers are zero-padded to three digits and increment without gaps.
func SubTaskID(parentID string, n int) string {
	return fmt.Sprintf("%s-%03d", parentID, n)
}
