package formstate

import (
	"errors"
	"fmt"
	"sort"

	"parent-portal/internal/models"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
)

var (
	// ErrUnknownPath is returned when a dotted path names no field of the record.
	ErrUnknownPath = errors.New("unknown field path")
	// ErrInvalidValue is returned when a value cannot be coerced to the field type.
	ErrInvalidValue = errors.New("invalid field value")
)

type record = models.ApplicationRecord

// accessor reads and writes one path of the record. get reports false when
// an intermediate object (a file reference) is absent.
type accessor struct {
	get func(r *record) (any, bool)
	set func(r *record, v any) error
}

var accessors = map[string]accessor{}

func register(path string, a accessor) {
	if _, dup := accessors[path]; dup {
		panic("formstate: duplicate path " + path)
	}
	accessors[path] = a
}

func invalid(path string, v any, err error) error {
	return fmt.Errorf("%w: %s: cannot use %T (%v)", ErrInvalidValue, path, v, err)
}

func stringField(path string, ptr func(r *record) *string) {
	register(path, accessor{
		get: func(r *record) (any, bool) { return *ptr(r), true },
		set: func(r *record, v any) error {
			s, err := cast.ToStringE(v)
			if err != nil {
				return invalid(path, v, err)
			}
			*ptr(r) = s
			return nil
		},
	})
}

func boolField(path string, ptr func(r *record) *bool) {
	register(path, accessor{
		get: func(r *record) (any, bool) { return *ptr(r), true },
		set: func(r *record, v any) error {
			b, err := cast.ToBoolE(v)
			if err != nil {
				return invalid(path, v, err)
			}
			*ptr(r) = b
			return nil
		},
	})
}

func intField(path string, ptr func(r *record) *int) {
	register(path, accessor{
		get: func(r *record) (any, bool) { return *ptr(r), true },
		set: func(r *record, v any) error {
			n, err := cast.ToIntE(v)
			if err != nil {
				return invalid(path, v, err)
			}
			*ptr(r) = n
			return nil
		},
	})
}

// objectField registers a sub-object path. Writes replace the whole object and
// accept T, *T or a map keyed by json field names.
func objectField[T any](path string, ptr func(r *record) *T) {
	register(path, accessor{
		get: func(r *record) (any, bool) { return *ptr(r), true },
		set: func(r *record, v any) error {
			out, err := decodeObject[T](v)
			if err != nil {
				return invalid(path, v, err)
			}
			*ptr(r) = out
			return nil
		},
	})
}

func decodeObject[T any](v any) (T, error) {
	var out T
	switch val := v.(type) {
	case T:
		return val, nil
	case *T:
		if val == nil {
			return out, errors.New("nil object")
		}
		return *val, nil
	case map[string]any:
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &out,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		})
		if err != nil {
			return out, err
		}
		return out, dec.Decode(val)
	}
	return out, fmt.Errorf("unsupported type %T", v)
}

// fileField registers documents.fileN and its leaves. Setting a leaf of an
// absent file allocates it; setting the file itself to nil clears it.
func fileField(path string, ptr func(r *record) **models.FileRef) {
	register(path, accessor{
		get: func(r *record) (any, bool) {
			f := *ptr(r)
			if f == nil {
				return nil, false
			}
			return f.Clone(), true
		},
		set: func(r *record, v any) error {
			if v == nil {
				*ptr(r) = nil
				return nil
			}
			if f, ok := v.(*models.FileRef); ok && f == nil {
				*ptr(r) = nil
				return nil
			}
			f, err := decodeObject[models.FileRef](v)
			if err != nil {
				return invalid(path, v, err)
			}
			*ptr(r) = &f
			return nil
		},
	})

	leaf := func(name string, get func(f *models.FileRef) any, set func(f *models.FileRef, v any) error) {
		register(path+"."+name, accessor{
			get: func(r *record) (any, bool) {
				f := *ptr(r)
				if f == nil {
					return nil, false
				}
				return get(f), true
			},
			set: func(r *record, v any) error {
				f := *ptr(r)
				if f == nil {
					f = &models.FileRef{}
				}
				if err := set(f, v); err != nil {
					return err
				}
				*ptr(r) = f
				return nil
			},
		})
	}
	strLeaf := func(name string, field func(f *models.FileRef) *string) {
		leaf(name,
			func(f *models.FileRef) any { return *field(f) },
			func(f *models.FileRef, v any) error {
				s, err := cast.ToStringE(v)
				if err != nil {
					return invalid(path+"."+name, v, err)
				}
				*field(f) = s
				return nil
			})
	}
	strLeaf("name", func(f *models.FileRef) *string { return &f.Name })
	strLeaf("uri", func(f *models.FileRef) *string { return &f.URI })
	strLeaf("mimeType", func(f *models.FileRef) *string { return &f.MimeType })
	leaf("size",
		func(f *models.FileRef) any { return f.Size },
		func(f *models.FileRef, v any) error {
			n, err := cast.ToInt64E(v)
			if err != nil {
				return invalid(path+".size", v, err)
			}
			f.Size = n
			return nil
		})
}

// Paths lists every addressable field path in sorted order.
func Paths() []string {
	out := make([]string, 0, len(accessors))
	for p := range accessors {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func init() {
	objectField("student", func(r *record) *models.Student { return &r.Student })
	stringField("student.surName", func(r *record) *string { return &r.Student.SurName })
	stringField("student.firstName", func(r *record) *string { return &r.Student.FirstName })
	stringField("student.middleName", func(r *record) *string { return &r.Student.MiddleName })
	stringField("student.dateOfBirth", func(r *record) *string { return &r.Student.DateOfBirth })
	stringField("student.gender", func(r *record) *string { return &r.Student.Gender })
	stringField("student.placeOfBirth", func(r *record) *string { return &r.Student.PlaceOfBirth })
	stringField("student.nationality", func(r *record) *string { return &r.Student.Nationality })
	stringField("student.stateOfOrigin", func(r *record) *string { return &r.Student.StateOfOrigin })
	stringField("student.religion", func(r *record) *string { return &r.Student.Religion })

	objectField("student.residentialAddress", func(r *record) *models.Address { return &r.Student.ResidentialAddress })
	stringField("student.residentialAddress.street", func(r *record) *string { return &r.Student.ResidentialAddress.Street })
	stringField("student.residentialAddress.city", func(r *record) *string { return &r.Student.ResidentialAddress.City })
	stringField("student.residentialAddress.state", func(r *record) *string { return &r.Student.ResidentialAddress.State })
	stringField("student.residentialAddress.country", func(r *record) *string { return &r.Student.ResidentialAddress.Country })

	objectField("student.medicalInformation", func(r *record) *models.MedicalInformation { return &r.Student.MedicalInformation })
	stringField("student.medicalInformation.bloodType", func(r *record) *string { return &r.Student.MedicalInformation.BloodType })
	stringField("student.medicalInformation.genotype", func(r *record) *string { return &r.Student.MedicalInformation.Genotype })
	stringField("student.medicalInformation.allergies", func(r *record) *string { return &r.Student.MedicalInformation.Allergies })
	stringField("student.medicalInformation.medicalConditions", func(r *record) *string { return &r.Student.MedicalInformation.MedicalConditions })
	boolField("student.medicalInformation.isChildImmunized", func(r *record) *bool { return &r.Student.MedicalInformation.IsChildImmunized })
	stringField("student.medicalInformation.doctorName", func(r *record) *string { return &r.Student.MedicalInformation.DoctorName })
	stringField("student.medicalInformation.doctorPhone", func(r *record) *string { return &r.Student.MedicalInformation.DoctorPhone })

	objectField("parentGuardian", func(r *record) *models.ParentGuardian { return &r.ParentGuardian })
	stringField("parentGuardian.fatherSurName", func(r *record) *string { return &r.ParentGuardian.FatherSurName })
	stringField("parentGuardian.fatherFirstName", func(r *record) *string { return &r.ParentGuardian.FatherFirstName })
	stringField("parentGuardian.fatherOccupation", func(r *record) *string { return &r.ParentGuardian.FatherOccupation })
	stringField("parentGuardian.fatherPhone", func(r *record) *string { return &r.ParentGuardian.FatherPhone })
	stringField("parentGuardian.fatherEmail", func(r *record) *string { return &r.ParentGuardian.FatherEmail })
	stringField("parentGuardian.motherSurName", func(r *record) *string { return &r.ParentGuardian.MotherSurName })
	stringField("parentGuardian.motherFirstName", func(r *record) *string { return &r.ParentGuardian.MotherFirstName })
	stringField("parentGuardian.motherOccupation", func(r *record) *string { return &r.ParentGuardian.MotherOccupation })
	stringField("parentGuardian.motherPhone", func(r *record) *string { return &r.ParentGuardian.MotherPhone })
	stringField("parentGuardian.motherEmail", func(r *record) *string { return &r.ParentGuardian.MotherEmail })
	stringField("parentGuardian.homeAddress", func(r *record) *string { return &r.ParentGuardian.HomeAddress })
	stringField("parentGuardian.emergencyContactName", func(r *record) *string { return &r.ParentGuardian.EmergencyContactName })
	stringField("parentGuardian.emergencyContactPhone", func(r *record) *string { return &r.ParentGuardian.EmergencyContactPhone })

	objectField("previousAcademicDetail", func(r *record) *models.PreviousAcademicDetail { return &r.PreviousAcademicDetail })
	stringField("previousAcademicDetail.schoolName", func(r *record) *string { return &r.PreviousAcademicDetail.SchoolName })
	stringField("previousAcademicDetail.lastClassAttended", func(r *record) *string { return &r.PreviousAcademicDetail.LastClassAttended })

	objectField("admissionDetail", func(r *record) *models.AdmissionDetail { return &r.AdmissionDetail })
	stringField("admissionDetail.classOfAdmission", func(r *record) *string { return &r.AdmissionDetail.ClassOfAdmission })
	stringField("admissionDetail.academicYear", func(r *record) *string { return &r.AdmissionDetail.AcademicYear })
	stringField("admissionDetail.languagePreference", func(r *record) *string { return &r.AdmissionDetail.LanguagePreference })
	boolField("admissionDetail.hasSiblingsInSchool", func(r *record) *bool { return &r.AdmissionDetail.HasSiblingsInSchool })
	intField("admissionDetail.numberOfSiblings", func(r *record) *int { return &r.AdmissionDetail.NumberOfSiblings })
	stringField("admissionDetail.siblingName", func(r *record) *string { return &r.AdmissionDetail.SiblingName })
	stringField("admissionDetail.siblingClass", func(r *record) *string { return &r.AdmissionDetail.SiblingClass })

	register("documents", accessor{
		get: func(r *record) (any, bool) { return r.Documents.Clone(), true },
		set: func(r *record, v any) error {
			d, err := decodeObject[models.Documents](v)
			if err != nil {
				return invalid("documents", v, err)
			}
			r.Documents = d.Clone()
			return nil
		},
	})
	fileField("documents.file1", func(r *record) **models.FileRef { return &r.Documents.File1 })
	fileField("documents.file2", func(r *record) **models.FileRef { return &r.Documents.File2 })
	fileField("documents.file3", func(r *record) **models.FileRef { return &r.Documents.File3 })
}
