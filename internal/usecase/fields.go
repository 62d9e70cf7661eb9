package usecase

import "time"

// OptionalString represents a PATCH field whose presence must be
// distinguished from its zero value.
type OptionalString struct {
	Set   bool
	Value string
}

// OptionalInt represents a nilable integer field that may be cleared
// explicitly (Set && Value == nil) or left untouched (!Set).
type OptionalInt struct {
	Set   bool
	Value *int
}

// OptionalFloat is OptionalInt's float64 counterpart, used for
// estimated_duration.
type OptionalFloat struct {
	Set   bool
	Value *float64
}

// OptionalTime is OptionalInt's time.Time counterpart, used for
// planned_start/planned_end/deadline.
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

// OptionalBool represents a boolean PATCH field.
type OptionalBool struct {
	Set   bool
	Value bool
}

// OptionalStrings represents the tags PATCH field.
type OptionalStrings struct {
	Set   bool
	Value []string
}

// OptionalInts represents the depends_on PATCH field.
type OptionalInts struct {
	Set   bool
	Value []int
}

// OptionalStatus represents the status PATCH field.
type OptionalStatus struct {
	Set   bool
	Value string
}

// UpdateFields is the partial-update payload for a task: every field
// is optional, and unspecified fields are left unchanged. A field whose
// pointer-typed Value is nil and whose Set is true means "clear this
// field" (valid for priority, estimated_duration, deadline,
// planned_start, planned_end).
type UpdateFields struct {
	Name              OptionalString
	Priority          OptionalInt
	Status            OptionalStatus
	PlannedStart      OptionalTime
	PlannedEnd        OptionalTime
	Deadline          OptionalTime
	EstimatedDuration OptionalFloat
	IsFixed           OptionalBool
	DependsOn         OptionalInts
	Tags              OptionalStrings
}
