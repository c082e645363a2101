package validator

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"parent-portal/internal/models"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

const (
	phoneTag        = "phone"
	birthdateTag    = "birthdate"
	academicYearTag = "academicyear"

	// reported by struct-level rules only
	siblingCountTag = "siblingcount"
	fileSizeTag     = "filesize"
	fileMaxTag      = "filemax"
	fileTypeTag     = "filetype"
)

var (
	phoneRegex        = regexp.MustCompile(`^\+?[0-9][0-9 \-]{6,18}$`)
	academicYearRegex = regexp.MustCompile(`^(\d{4})/(\d{4})$`)

	// now is swapped in tests.
	now = time.Now
)

// messages maps a validation tag to its text; {0} is the field label, {1} the tag param.
var messages = map[string]string{
	"required":      "{0} is required",
	"email":         "{0} must be a valid email address",
	"oneof":         "{0} must be one of: {1}",
	"max":           "{0} must be at most {1} characters",
	"gte":           "{0} must be {1} or more",
	phoneTag:        "{0} must be a valid phone number",
	birthdateTag:    "{0} must be a past date in the format YYYY-MM-DD",
	academicYearTag: "{0} must look like 2025/2026",
	siblingCountTag: "{0} must be at least 1 when siblings attend the school",
	fileSizeTag:     "{0} is empty",
	fileMaxTag:      "{0} is larger than {1} MB",
	fileTypeTag:     "{0} must be a PDF, JPEG or PNG file",
}

// labels are the human-readable names of json fields.
var labels = map[string]string{
	"surName":               "Surname",
	"firstName":             "First name",
	"middleName":            "Middle name",
	"dateOfBirth":           "Date of birth",
	"gender":                "Gender",
	"placeOfBirth":          "Place of birth",
	"nationality":           "Nationality",
	"stateOfOrigin":         "State of origin",
	"religion":              "Religion",
	"street":                "Street",
	"city":                  "City",
	"state":                 "State",
	"country":               "Country",
	"bloodType":             "Blood type",
	"genotype":              "Genotype",
	"doctorPhone":           "Doctor's phone",
	"fatherSurName":         "Father's surname",
	"fatherFirstName":       "Father's first name",
	"fatherOccupation":      "Father's occupation",
	"fatherPhone":           "Father's phone",
	"fatherEmail":           "Father's email",
	"motherSurName":         "Mother's surname",
	"motherFirstName":       "Mother's first name",
	"motherOccupation":      "Mother's occupation",
	"motherPhone":           "Mother's phone",
	"motherEmail":           "Mother's email",
	"homeAddress":           "Home address",
	"emergencyContactPhone": "Emergency contact phone",
	"schoolName":            "Previous school",
	"lastClassAttended":     "Last class attended",
	"classOfAdmission":      "Class of admission",
	"academicYear":          "Academic year",
	"languagePreference":    "Language preference",
	"numberOfSiblings":      "Number of siblings",
	"siblingName":           "Sibling's name",
	"siblingClass":          "Sibling's class",
	"file1":                 "Birth certificate",
	"file2":                 "Passport photograph",
	"file3":                 "Previous school report",
}

func label(field string) string {
	if l, ok := labels[field]; ok {
		return l
	}
	return field
}

// registerMessages overrides the default english texts so every message
// names the field by its label.
func registerMessages(validate *validator.Validate, trans ut.Translator) {
	for tag, text := range messages {
		_ = validate.RegisterTranslation(
			tag, trans,
			func(t ut.Translator) error { return t.Add(tag, text, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				s, err := t.T(tag, label(fe.Field()), fe.Param())
				if err != nil {
					return fe.Error()
				}
				return s
			},
		)
	}
}

// Field validators

func phoneValidation(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(strings.TrimSpace(fl.Field().String()))
}

func birthdateValidation(fl validator.FieldLevel) bool {
	d, err := time.Parse("2006-01-02", fl.Field().String())
	if err != nil {
		return false
	}
	return !d.After(now())
}

func academicYearValidation(fl validator.FieldLevel) bool {
	m := academicYearRegex.FindStringSubmatch(fl.Field().String())
	if m == nil {
		return false
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	return end == start+1
}

// Struct-level rules

// admissionDetailStructValidation checks the sibling fields only when the
// student has siblings in the school.
func admissionDetailStructValidation(sl validator.StructLevel) {
	ad, ok := sl.Current().Interface().(models.AdmissionDetail)
	if !ok || !ad.HasSiblingsInSchool {
		return
	}
	if strings.TrimSpace(ad.SiblingName) == "" {
		sl.ReportError(ad.SiblingName, "siblingName", "SiblingName", "required", "")
	}
	if strings.TrimSpace(ad.SiblingClass) == "" {
		sl.ReportError(ad.SiblingClass, "siblingClass", "SiblingClass", "required", "")
	}
	if ad.NumberOfSiblings < 1 {
		sl.ReportError(ad.NumberOfSiblings, "numberOfSiblings", "NumberOfSiblings", siblingCountTag, "")
	}
}

var allowedMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
}

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".jpeg": true,
	".jpg":  true,
	".png":  true,
}

// FileTypeAllowed checks the declared mime type, or the file name extension
// when no mime type was reported.
func FileTypeAllowed(f *models.FileRef) bool {
	if f == nil {
		return false
	}
	if mt := strings.ToLower(strings.TrimSpace(f.MimeType)); mt != "" {
		if i := strings.IndexByte(mt, ';'); i >= 0 {
			mt = strings.TrimSpace(mt[:i])
		}
		return allowedMimeTypes[mt]
	}
	return allowedExtensions[strings.ToLower(path.Ext(f.Name))]
}

type fileRule struct {
	field    string
	required bool
	get      func(d models.Documents) *models.FileRef
}

var fileRules = []fileRule{
	{"file1", true, func(d models.Documents) *models.FileRef { return d.File1 }},
	{"file2", true, func(d models.Documents) *models.FileRef { return d.File2 }},
	{"file3", false, func(d models.Documents) *models.FileRef { return d.File3 }},
}

// documentsStructValidation reports at most one error per file.
func documentsStructValidation(maxBytes int64) validator.StructLevelFunc {
	return func(sl validator.StructLevel) {
		docs, ok := sl.Current().Interface().(models.Documents)
		if !ok {
			return
		}
		for _, rule := range fileRules {
			f := rule.get(docs)
			structField := strings.ToUpper(rule.field[:1]) + rule.field[1:]
			switch {
			case f == nil:
				if rule.required {
					sl.ReportError(f, rule.field, structField, "required", "")
				}
			case f.Size <= 0:
				sl.ReportError(f, rule.field, structField, fileSizeTag, "")
			case maxBytes > 0 && f.Size > maxBytes:
				sl.ReportError(f, rule.field, structField, fileMaxTag, strconv.FormatInt(maxBytes/(1<<20), 10))
			case !FileTypeAllowed(f):
				sl.ReportError(f, rule.field, structField, fileTypeTag, "")
			}
		}
	}
}
