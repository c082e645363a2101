package validation

// DraftSnapshotSchema is the shape a persisted admission draft must have.
// Field values are not checked here; the section validator owns that.
const DraftSnapshotSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["record", "savedAt"],
  "properties": {
    "savedAt": {"type": "string", "format": "date-time"},
    "record": {
      "type": "object",
      "properties": {
        "student": {
          "type": "object",
          "properties": {
            "residentialAddress": {"type": "object"},
            "medicalInformation": {
              "type": "object",
              "properties": {
                "isChildImmunized": {"type": "boolean"}
              }
            }
          }
        },
        "parentGuardian": {"type": "object"},
        "previousAcademicDetail": {"type": "object"},
        "admissionDetail": {
          "type": "object",
          "properties": {
            "hasSiblingsInSchool": {"type": "boolean"},
            "numberOfSiblings": {"type": "integer"}
          }
        },
        "documents": {
          "type": "object",
          "properties": {
            "file1": {"$ref": "#/definitions/fileRef"},
            "file2": {"$ref": "#/definitions/fileRef"},
            "file3": {"$ref": "#/definitions/fileRef"}
          }
        }
      }
    }
  },
  "definitions": {
    "fileRef": {
      "oneOf": [
        {"type": "null"},
        {
          "type": "object",
          "required": ["name", "uri", "size"],
          "properties": {
            "name": {"type": "string"},
            "uri": {"type": "string"},
            "size": {"type": "integer"},
            "mimeType": {"type": "string"}
          }
        }
      ]
    }
  }
}`

var draftSchema = MustCompile(DraftSnapshotSchema)

// ValidateDraftSnapshot checks a raw persisted draft.
func ValidateDraftSnapshot(doc []byte) (*ValidationResult, error) {
	return draftSchema.Validate(doc)
}
