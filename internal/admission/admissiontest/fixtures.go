// Package admissiontest provides admission records for tests.
package admissiontest

import "parent-portal/internal/models"

// ValidRecord returns a record that passes every section.
func ValidRecord() models.ApplicationRecord {
	r := models.NewApplicationRecord()
	r.Student = models.Student{
		SurName:       "Okafor",
		FirstName:     "Chidera",
		DateOfBirth:   "2015-04-12",
		Gender:        "female",
		PlaceOfBirth:  "Enugu",
		Nationality:   "Nigerian",
		StateOfOrigin: "Enugu",
		Religion:      "Christianity",
		ResidentialAddress: models.Address{
			Street:  "14 Admiralty Way",
			City:    "Lekki",
			State:   "Lagos",
			Country: "Nigeria",
		},
		MedicalInformation: models.MedicalInformation{
			BloodType:        "O+",
			Genotype:         "AA",
			IsChildImmunized: true,
		},
	}
	r.ParentGuardian = models.ParentGuardian{
		FatherSurName:    "Okafor",
		FatherFirstName:  "Emeka",
		FatherOccupation: "Engineer",
		FatherPhone:      "+2348012345678",
		FatherEmail:      "emeka.okafor@example.com",
		MotherSurName:    "Okafor",
		MotherFirstName:  "Ngozi",
		MotherOccupation: "Pharmacist",
		MotherPhone:      "+2348098765432",
		MotherEmail:      "ngozi.okafor@example.com",
		HomeAddress:      "14 Admiralty Way, Lekki, Lagos",
	}
	r.PreviousAcademicDetail = models.PreviousAcademicDetail{
		SchoolName:        "Greenfield Primary",
		LastClassAttended: "Primary 4",
	}
	r.AdmissionDetail = models.AdmissionDetail{
		ClassOfAdmission:   "Primary 5",
		AcademicYear:       "2025/2026",
		LanguagePreference: "English",
	}
	r.Documents = models.Documents{
		File1: &models.FileRef{Name: "birth-certificate.pdf", URI: "file:///tmp/birth-certificate.pdf", Size: 120_000, MimeType: "application/pdf"},
		File2: &models.FileRef{Name: "passport.jpg", URI: "file:///tmp/passport.jpg", Size: 48_000, MimeType: "image/jpeg"},
	}
	return r
}
