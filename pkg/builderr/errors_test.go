package builderr

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMissingFilesError_ListsEveryPath(t *testing.T) {
	err := &MissingFilesError{Paths: []MissingPath{
		{Role: "data", Path: "doc.json"},
		{Role: "template", Path: "doc.tmpl"},
	}}

	msg := err.Error()
	assert.Contains(t, msg, "data file: doc.json")
	assert.Contains(t, msg, "template file: doc.tmpl")
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: KindUnknown},
		{name: "plain", err: errors.New("boom"), want: KindUnknown},
		{name: "missing", err: &MissingFilesError{}, want: KindInputMissing},
		{name: "io", err: &IOError{Op: "stat", Path: "x", Err: fs.ErrNotExist}, want: KindIO},
		{name: "parse", err: &ParseError{Path: "spec.json", Err: errors.New("bad")}, want: KindParse},
		{name: "render", err: &RenderError{Template: "t", Err: errors.New("bad")}, want: KindRender},
		{name: "wrapped render", err: fmt.Errorf("job doc: %w", &RenderError{Template: "t", Err: errors.New("x")}), want: KindRender},
		{name: "render wrapping io", err: &RenderError{Template: "t", Err: &IOError{Op: "read", Err: fs.ErrPermission}}, want: KindRender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIOError_Unwrap(t *testing.T) {
	err := NewIOError("remove", "out.rst", fs.ErrNotExist)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, "remove out.rst: file does not exist", err.Error())

	assert.NoError(t, NewIOError("remove", "out.rst", nil))
}

func TestParseError_Message(t *testing.T) {
	err := &ParseError{Path: "jobs.yaml", Format: "yaml", Err: errors.New("line 3")}
	assert.Equal(t, "parse jobs.yaml (yaml): line 3", err.Error())
}
