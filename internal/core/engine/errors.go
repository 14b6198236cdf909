package engine

import "errors"

// ErrKnowledgeBaseEmpty is returned when no content has been ingested yet.
// Recoverable: callers surface it as "ingest documents first", not as a
// server failure.
var ErrKnowledgeBaseEmpty = errors.New("knowledge base is empty; ingest documents first")
