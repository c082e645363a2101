// internal/models/application.go
package models

// ApplicationRecord is the single nested record built across the admission sections.
// JSON names double as the dotted field path segments.
type ApplicationRecord struct {
	Student                Student                `json:"student" mapstructure:"student"`
	ParentGuardian         ParentGuardian         `json:"parentGuardian" mapstructure:"parentGuardian"`
	PreviousAcademicDetail PreviousAcademicDetail `json:"previousAcademicDetail" mapstructure:"previousAcademicDetail"`
	AdmissionDetail        AdmissionDetail        `json:"admissionDetail" mapstructure:"admissionDetail"`
	Documents              Documents              `json:"documents" mapstructure:"documents"`
}

type Student struct {
	SurName            string             `json:"surName" mapstructure:"surName" validate:"required,max=100"`
	FirstName          string             `json:"firstName" mapstructure:"firstName" validate:"required,max=100"`
	MiddleName         string             `json:"middleName" mapstructure:"middleName" validate:"max=100"`
	DateOfBirth        string             `json:"dateOfBirth" mapstructure:"dateOfBirth" validate:"required,birthdate"`
	Gender             string             `json:"gender" mapstructure:"gender" validate:"required,oneof=male female"`
	PlaceOfBirth       string             `json:"placeOfBirth" mapstructure:"placeOfBirth"`
	Nationality        string             `json:"nationality" mapstructure:"nationality" validate:"required"`
	StateOfOrigin      string             `json:"stateOfOrigin" mapstructure:"stateOfOrigin" validate:"required"`
	Religion           string             `json:"religion" mapstructure:"religion"`
	ResidentialAddress Address            `json:"residentialAddress" mapstructure:"residentialAddress"`
	MedicalInformation MedicalInformation `json:"medicalInformation" mapstructure:"medicalInformation"`
}

type Address struct {
	Street  string `json:"street" mapstructure:"street" validate:"required"`
	City    string `json:"city" mapstructure:"city" validate:"required"`
	State   string `json:"state" mapstructure:"state" validate:"required"`
	Country string `json:"country" mapstructure:"country" validate:"required"`
}

type MedicalInformation struct {
	BloodType         string `json:"bloodType" mapstructure:"bloodType" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Genotype          string `json:"genotype" mapstructure:"genotype" validate:"omitempty,oneof=AA AS AC SS SC"`
	Allergies         string `json:"allergies" mapstructure:"allergies"`
	MedicalConditions string `json:"medicalConditions" mapstructure:"medicalConditions"`
	IsChildImmunized  bool   `json:"isChildImmunized" mapstructure:"isChildImmunized"`
	DoctorName        string `json:"doctorName" mapstructure:"doctorName"`
	DoctorPhone       string `json:"doctorPhone" mapstructure:"doctorPhone" validate:"omitempty,phone"`
}

type ParentGuardian struct {
	FatherSurName         string `json:"fatherSurName" mapstructure:"fatherSurName" validate:"required"`
	FatherFirstName       string `json:"fatherFirstName" mapstructure:"fatherFirstName" validate:"required"`
	FatherOccupation      string `json:"fatherOccupation" mapstructure:"fatherOccupation" validate:"required"`
	FatherPhone           string `json:"fatherPhone" mapstructure:"fatherPhone" validate:"required,phone"`
	FatherEmail           string `json:"fatherEmail" mapstructure:"fatherEmail" validate:"omitempty,email"`
	MotherSurName         string `json:"motherSurName" mapstructure:"motherSurName" validate:"required"`
	MotherFirstName       string `json:"motherFirstName" mapstructure:"motherFirstName" validate:"required"`
	MotherOccupation      string `json:"motherOccupation" mapstructure:"motherOccupation" validate:"required"`
	MotherPhone           string `json:"motherPhone" mapstructure:"motherPhone" validate:"required,phone"`
	MotherEmail           string `json:"motherEmail" mapstructure:"motherEmail" validate:"omitempty,email"`
	HomeAddress           string `json:"homeAddress" mapstructure:"homeAddress" validate:"required"`
	EmergencyContactName  string `json:"emergencyContactName" mapstructure:"emergencyContactName"`
	EmergencyContactPhone string `json:"emergencyContactPhone" mapstructure:"emergencyContactPhone" validate:"omitempty,phone"`
}

type PreviousAcademicDetail struct {
	SchoolName        string `json:"schoolName" mapstructure:"schoolName" validate:"required"`
	LastClassAttended string `json:"lastClassAttended" mapstructure:"lastClassAttended" validate:"required"`
}

// AdmissionDetail carries the sibling fields; they are only checked when
// HasSiblingsInSchool is set (see the struct-level rule in the validator).
type AdmissionDetail struct {
	ClassOfAdmission    string `json:"classOfAdmission" mapstructure:"classOfAdmission" validate:"required"`
	AcademicYear        string `json:"academicYear" mapstructure:"academicYear" validate:"required,academicyear"`
	LanguagePreference  string `json:"languagePreference" mapstructure:"languagePreference" validate:"required"`
	HasSiblingsInSchool bool   `json:"hasSiblingsInSchool" mapstructure:"hasSiblingsInSchool"`
	NumberOfSiblings    int    `json:"numberOfSiblings" mapstructure:"numberOfSiblings" validate:"gte=0"`
	SiblingName         string `json:"siblingName" mapstructure:"siblingName"`
	SiblingClass        string `json:"siblingClass" mapstructure:"siblingClass"`
}

// AcademicSlice is the record slice validated by the academic section.
type AcademicSlice struct {
	PreviousAcademicDetail PreviousAcademicDetail `json:"previousAcademicDetail"`
	AdmissionDetail        AdmissionDetail        `json:"admissionDetail"`
}

// Documents holds the uploaded files; a nil entry means not uploaded yet.
type Documents struct {
	File1 *FileRef `json:"file1" mapstructure:"file1"`
	File2 *FileRef `json:"file2" mapstructure:"file2"`
	File3 *FileRef `json:"file3" mapstructure:"file3"`
}

// FileRef is what the file picker hands back; bytes are only read at submission.
type FileRef struct {
	Name     string `json:"name" mapstructure:"name"`
	URI      string `json:"uri" mapstructure:"uri"`
	Size     int64  `json:"size" mapstructure:"size"`
	MimeType string `json:"mimeType" mapstructure:"mimeType"`
}

// NewApplicationRecord returns the canonical empty record.
func NewApplicationRecord() ApplicationRecord {
	return ApplicationRecord{
		Student: Student{
			MedicalInformation: MedicalInformation{IsChildImmunized: false},
		},
		AdmissionDetail: AdmissionDetail{
			HasSiblingsInSchool: false,
			NumberOfSiblings:    0,
		},
	}
}

// Clone returns a deep copy; file references are never shared.
func (r ApplicationRecord) Clone() ApplicationRecord {
	out := r
	out.Documents = r.Documents.Clone()
	return out
}

func (d Documents) Clone() Documents {
	return Documents{
		File1: d.File1.Clone(),
		File2: d.File2.Clone(),
		File3: d.File3.Clone(),
	}
}

func (f *FileRef) Clone() *FileRef {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

// Files returns the uploaded files keyed by field name, skipping absent ones.
func (d Documents) Files() map[string]*FileRef {
	out := make(map[string]*FileRef, 3)
	for name, f := range map[string]*FileRef{"file1": d.File1, "file2": d.File2, "file3": d.File3} {
		if f != nil {
			out[name] = f
		}
	}
	return out
}

// Academic extracts the academic section slice.
func (r ApplicationRecord) Academic() AcademicSlice {
	return AcademicSlice{
		PreviousAcademicDetail: r.PreviousAcademicDetail,
		AdmissionDetail:        r.AdmissionDetail,
	}
}
