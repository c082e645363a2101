// Package validator checks one admission section at a time and reports every
// violated field, keyed by its dotted path.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"parent-portal/internal/models"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// pathPrefix is prepended to the namespace (minus the root struct name) of a
// field error to obtain its record path.
var pathPrefix = map[models.Section]string{
	models.SectionStudent:   "student.",
	models.SectionParent:    "parentGuardian.",
	models.SectionAcademic:  "",
	models.SectionDocuments: "documents.",
}

// Validator is safe for concurrent use.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

type Option func(*options)

type options struct {
	maxFileBytes int64
}

// WithMaxFileSize rejects documents larger than mb megabytes. Zero disables the limit.
func WithMaxFileSize(mb int) Option {
	return func(o *options) { o.maxFileBytes = int64(mb) << 20 }
}

func New(opts ...Option) *Validator {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	validate := validator.New()

	// Register the english error messages for validation errors.
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(phoneTag, phoneValidation)
	_ = validate.RegisterValidation(birthdateTag, birthdateValidation)
	_ = validate.RegisterValidation(academicYearTag, academicYearValidation)
	validate.RegisterStructValidation(admissionDetailStructValidation, models.AdmissionDetail{})
	validate.RegisterStructValidation(documentsStructValidation(o.maxFileBytes), models.Documents{})

	registerMessages(validate, translator)

	return &Validator{validate: validate, translator: translator}
}

// Validate checks the record slice of one section. The returned error is only
// set for a programming mistake: an unknown section or a slice of the wrong type.
func (v *Validator) Validate(section models.Section, slice any) (models.ValidationErrorMap, error) {
	prefix, ok := pathPrefix[section]
	if !ok {
		return nil, fmt.Errorf("section %q has no fields to validate", section)
	}
	target, err := normalizeSlice(section, slice)
	if err != nil {
		return nil, err
	}

	out := make(models.ValidationErrorMap)
	err = v.validate.Struct(target)
	if err == nil {
		return out, nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil, err
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}
	for _, fe := range verrs {
		p := fieldPath(prefix, fe.Namespace())
		if _, seen := out[p]; seen {
			continue
		}
		out[p] = fe.Translate(v.translator)
	}
	return out, nil
}

// ValidateRecord validates the slice of record owned by section.
func (v *Validator) ValidateRecord(section models.Section, record models.ApplicationRecord) (models.ValidationErrorMap, error) {
	slice, err := SliceOf(section, record)
	if err != nil {
		return nil, err
	}
	return v.Validate(section, slice)
}

// ValidateAll validates every section that carries fields.
func (v *Validator) ValidateAll(record models.ApplicationRecord) (models.ValidationErrorMap, error) {
	out := make(models.ValidationErrorMap)
	for _, s := range models.ValidatedSections() {
		errs, err := v.ValidateRecord(s, record)
		if err != nil {
			return nil, err
		}
		out.Merge(errs)
	}
	return out, nil
}

// SliceOf extracts the part of the record a section validates.
func SliceOf(section models.Section, record models.ApplicationRecord) (any, error) {
	switch section {
	case models.SectionStudent:
		return record.Student, nil
	case models.SectionParent:
		return record.ParentGuardian, nil
	case models.SectionAcademic:
		return record.Academic(), nil
	case models.SectionDocuments:
		return record.Documents, nil
	}
	return nil, fmt.Errorf("section %q has no fields to validate", section)
}

func normalizeSlice(section models.Section, slice any) (any, error) {
	switch section {
	case models.SectionStudent:
		switch s := slice.(type) {
		case models.Student:
			return s, nil
		case *models.Student:
			if s != nil {
				return *s, nil
			}
		}
	case models.SectionParent:
		switch s := slice.(type) {
		case models.ParentGuardian:
			return s, nil
		case *models.ParentGuardian:
			if s != nil {
				return *s, nil
			}
		}
	case models.SectionAcademic:
		switch s := slice.(type) {
		case models.AcademicSlice:
			return s, nil
		case *models.AcademicSlice:
			if s != nil {
				return *s, nil
			}
		}
	case models.SectionDocuments:
		switch s := slice.(type) {
		case models.Documents:
			return s, nil
		case *models.Documents:
			if s != nil {
				return *s, nil
			}
		}
	}
	return nil, fmt.Errorf("section %q cannot validate %T", section, slice)
}

// fieldPath turns "Student.residentialAddress.city" into "student.residentialAddress.city".
func fieldPath(prefix, namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		namespace = namespace[i+1:]
	}
	return prefix + namespace
}
