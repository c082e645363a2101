package sequencer

import (
	"errors"
	"testing"

	"parent-portal/internal/admission/admissiontest"
	"parent-portal/internal/admission/validator"
	"parent-portal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== Test Helper Functions =====

func recordGate(t *testing.T, rec *models.ApplicationRecord) Gate {
	t.Helper()
	v := validator.New()
	return func(section models.Section) (models.ValidationErrorMap, error) {
		return v.ValidateRecord(section, *rec)
	}
}

// ===== Tests =====

func TestNext(t *testing.T) {
	tests := []struct {
		from models.Section
		want models.Section
	}{
		{models.SectionStudent, models.SectionParent},
		{models.SectionParent, models.SectionAcademic},
		{models.SectionAcademic, models.SectionDocuments},
		{models.SectionDocuments, models.SectionReview},
		{models.SectionReview, models.SectionSubmit},
	}
	for _, tt := range tests {
		got, err := Next(tt.from)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := Next(models.SectionSubmit)
	assert.ErrorIs(t, err, ErrTerminal)
	_, err = Next("payments")
	assert.Error(t, err)
}

func TestSequencer_WalksValidRecord(t *testing.T) {
	rec := admissiontest.ValidRecord()
	seq := New(recordGate(t, &rec))

	next, errs, err := seq.Advance(models.SectionStudent)
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, models.SectionParent, next)

	for _, s := range []models.Section{models.SectionParent, models.SectionAcademic, models.SectionDocuments, models.SectionReview} {
		_, errs, err := seq.Advance(s)
		require.NoError(t, err, s)
		assert.Empty(t, errs, s)
	}
	assert.Equal(t, models.SectionSubmit, seq.Current())
	assert.True(t, seq.Visited(models.SectionReview))

	_, _, err = seq.Advance(models.SectionSubmit)
	assert.ErrorIs(t, err, ErrTerminal)
}

func TestSequencer_BlocksOnInvalidDocuments(t *testing.T) {
	rec := admissiontest.ValidRecord()
	rec.Documents.File2 = nil
	seq := New(recordGate(t, &rec))
	require.NoError(t, seq.JumpTo(models.SectionDocuments))

	at, errs, err := seq.Advance(models.SectionDocuments)
	require.NoError(t, err)
	assert.Equal(t, models.SectionDocuments, at)
	assert.Equal(t, models.ValidationErrorMap{"documents.file2": "Passport photograph is required"}, errs)
	assert.Equal(t, models.SectionDocuments, seq.Current())
	assert.False(t, seq.Visited(models.SectionDocuments))

	rec.Documents.File2 = &models.FileRef{Name: "p.png", URI: "file:///p.png", Size: 5, MimeType: "image/png"}
	at, _, err = seq.Advance(models.SectionDocuments)
	require.NoError(t, err)
	assert.Equal(t, models.SectionReview, at)
}

func TestSequencer_OutOfOrder(t *testing.T) {
	rec := admissiontest.ValidRecord()
	seq := New(recordGate(t, &rec))

	_, _, err := seq.Advance(models.SectionAcademic)
	assert.ErrorIs(t, err, ErrOutOfOrder)
	assert.Equal(t, models.SectionStudent, seq.Current())
}

func TestSequencer_GateError(t *testing.T) {
	seq := New(func(models.Section) (models.ValidationErrorMap, error) {
		return nil, errors.New("boom")
	})
	_, _, err := seq.Advance(models.SectionStudent)
	require.Error(t, err)
	assert.Equal(t, models.SectionStudent, seq.Current())
}

func TestSequencer_JumpTo(t *testing.T) {
	seq := New(nil)

	require.NoError(t, seq.JumpTo(models.SectionReview))
	assert.Equal(t, models.SectionReview, seq.Current())
	require.NoError(t, seq.JumpTo(models.SectionParent))
	assert.Equal(t, models.SectionParent, seq.Current())

	assert.ErrorIs(t, seq.JumpTo(models.SectionSubmit), ErrJumpTarget)
	assert.Error(t, seq.JumpTo("gradebook"))
	assert.Equal(t, models.SectionParent, seq.Current())

	seq.Reset()
	assert.Equal(t, models.SectionStudent, seq.Current())
}
