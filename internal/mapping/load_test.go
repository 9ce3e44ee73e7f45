package mapping

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// docJSON builds a minimal valid document and lets each test mutate it
// before marshaling.
func docJSON(t *testing.T, mutate func(doc map[string]any)) []byte {
	t.Helper()
	doc := map[string]any{
		"source_type":     "csv",
		"record_id_field": "record_id",
		"fields": []map[string]any{
			{"source_field": "SubjectID", "target_field": "record_id", "field_type": "text"},
			{"source_field": "Geburtsdatum", "target_field": "dob", "field_type": "date", "date_format": "%d.%m.%Y"},
			{"source_field": "Geschlecht", "target_field": "sex", "field_type": "radio",
				"options": map[string]string{"1": "Male", "2": "Female"}},
			{"target_field": "age", "field_type": "calculated", "formula": "as_of_year - {dob}[0:4]"},
		},
		"phi_fields":         []string{"dob"},
		"migration_settings": map[string]any{"batch_size": 50},
	}
	if mutate != nil {
		mutate(doc)
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return raw
}

func fields(doc map[string]any) []map[string]any {
	return doc["fields"].([]map[string]any)
}

func TestLoad(t *testing.T) {
	doc, err := Load(docJSON(t, nil))
	require.NoError(t, err)

	assert.Equal(t, SourceCSV, doc.SourceType)
	assert.Equal(t, "record_id", doc.RecordIDField)
	assert.Len(t, doc.Fields, 4)
	assert.Equal(t, OverwriteAlways, doc.Settings.OverwriteBehavior)
	assert.True(t, doc.IsPHI("dob"))
	assert.False(t, doc.IsPHI("sex"))
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(doc map[string]any)
	}{
		{
			name:   "missing source_type",
			mutate: func(doc map[string]any) { delete(doc, "source_type") },
		},
		{
			name:   "unknown source_type",
			mutate: func(doc map[string]any) { doc["source_type"] = "parquet" },
		},
		{
			name:   "missing record_id_field",
			mutate: func(doc map[string]any) { delete(doc, "record_id_field") },
		},
		{
			name:   "no fields",
			mutate: func(doc map[string]any) { doc["fields"] = []map[string]any{} },
		},
		{
			name:   "zero batch size",
			mutate: func(doc map[string]any) { doc["migration_settings"] = map[string]any{"batch_size": 0} },
		},
		{
			name:   "unknown overwrite behavior",
			mutate: func(doc map[string]any) {
				doc["migration_settings"] = map[string]any{"batch_size": 10, "overwrite_behavior": "upsert"}
			},
		},
		{
			name:   "duplicate target field",
			mutate: func(doc map[string]any) { fields(doc)[1]["target_field"] = "record_id" },
		},
		{
			name:   "unknown field type",
			mutate: func(doc map[string]any) { fields(doc)[1]["field_type"] = "blob" },
		},
		{
			name:   "record id not mapped",
			mutate: func(doc map[string]any) { doc["record_id_field"] = "participant_id" },
		},
		{
			name:   "calculated field without formula",
			mutate: func(doc map[string]any) { delete(fields(doc)[3], "formula") },
		},
		{
			name:   "formula syntax error",
			mutate: func(doc map[string]any) { fields(doc)[3]["formula"] = "as_of_year -" },
		},
		{
			name: "formula forward reference",
			mutate: func(doc map[string]any) {
				// age (index 3) references sex_code declared after it
				doc["fields"] = append(fields(doc), map[string]any{
					"source_field": "x", "target_field": "late", "field_type": "text",
				})
				fields(doc)[3]["formula"] = "{late}"
			},
		},
		{
			name:   "bad date format",
			mutate: func(doc map[string]any) { fields(doc)[1]["date_format"] = "%Q" },
		},
		{
			name:   "choice field without options",
			mutate: func(doc map[string]any) { delete(fields(doc)[2], "options") },
		},
		{
			name: "other_code not among options",
			mutate: func(doc map[string]any) {
				fields(doc)[2]["other_code"] = "99"
			},
		},
		{
			name:   "non-calculated field without source",
			mutate: func(doc map[string]any) { delete(fields(doc)[1], "source_field") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(docJSON(t, tt.mutate))
			assert.Error(t, err)
		})
	}
}

func TestLoadNotJSON(t *testing.T) {
	_, err := Load([]byte("source_type: csv"))
	assert.Error(t, err)
}
