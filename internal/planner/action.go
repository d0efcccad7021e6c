// Package planner decides the next step of an upload from its current state.
package planner

import (
	"walupload/internal/ops"
)

// Action is a proposed next step. It is not logged; only its outcome is.
type Action interface {
	Name() string
	isAction()
}

// LoadParts asks for the part files to be discovered.
type LoadParts struct{}

// StartUpload asks for a remote session to be created.
type StartUpload struct {
	Attempt int
}

// UploadPart asks for the part at Index to be transferred.
type UploadPart struct {
	UploadID string
	Index    int
	Attempt  int
	Part     ops.Part
}

// Complete asks for the remote store to assemble the uploaded parts.
type Complete struct {
	UploadID string
	Attempt  int
	Parts    []ops.Part
}

// Abort asks for the remote session to be cancelled.
type Abort struct {
	UploadID string
	Msg      string
	Attempt  int
}

// Terminate ends the upload loop.
type Terminate struct {
	Reason string
}

func (LoadParts) Name() string   { return "load_parts" }
func (StartUpload) Name() string { return "start_upload" }
func (UploadPart) Name() string  { return "upload_part" }
func (Complete) Name() string    { return "complete" }
func (Abort) Name() string       { return "abort" }
func (Terminate) Name() string   { return "terminate" }

func (LoadParts) isAction()   {}
func (StartUpload) isAction() {}
func (UploadPart) isAction()  {}
func (Complete) isAction()    {}
func (Abort) isAction()       {}
func (Terminate) isAction()   {}
