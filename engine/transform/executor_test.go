package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allfeat/massload/engine/core"
)

func TestExecute(t *testing.T) {
	t.Run("Should transform well-formed rows", func(t *testing.T) {
		rows := []core.Row{
			{
				"Code ISWC":    "T-123.456.789-0",
				"Titre":        "  Ma Chanson  ",
				"Role":         "CA",
				"IPI":          "123456789",
				"Instrumental": "oui",
			},
			{
				"Code ISWC":    "T9876543210",
				"Titre":        "Another Song",
				"Role":         "A",
				"IPI":          "987654321",
				"Instrumental": "non",
			},
		}

		result := Execute(rows, exampleMatrix())

		require.True(t, result.OK())
		require.Len(t, result.Records, 2)
		first := result.Records[0]
		assert.Equal(t, "T1234567890", first["iswc"])
		assert.Equal(t, "Ma Chanson", first["title"])
		assert.Equal(t, "Composer", first["creatorRole"])
		assert.Equal(t, int64(123456789), first["creatorIpi"])
		assert.Equal(t, true, first["instrumental"])
		second := result.Records[1]
		assert.Equal(t, "Author", second["creatorRole"])
		assert.Equal(t, false, second["instrumental"])
	})

	t.Run("Should skip rows missing required fields with the field list", func(t *testing.T) {
		rows := []core.Row{{"Titre": "Missing ISWC", "Role": "CA"}}

		result := Execute(rows, exampleMatrix())

		assert.Empty(t, result.Records)
		require.Len(t, result.Skipped, 1)
		assert.Equal(t, SkipReasonMissingRequired, result.Skipped[0].Reason)
		assert.Contains(t, result.Skipped[0].MissingFields, "iswc")
	})

	t.Run("Should report rows that resolve to an empty record", func(t *testing.T) {
		matrix := NewMatrix()
		matrix.Transforms["title"] = FieldTransform{Source: "Missing Column"}

		result := Execute([]core.Row{{"other": "value"}}, matrix)

		assert.Empty(t, result.Records)
		require.Len(t, result.Skipped, 1)
		assert.Equal(t, SkipReasonEmptyRecord, result.Skipped[0].Reason)
	})

	t.Run("Should emit constants", func(t *testing.T) {
		matrix := NewMatrix()
		matrix.Transforms["language"] = FieldTransform{Constant: "French"}

		result := Execute([]core.Row{{"any_field": "any_value"}}, matrix)

		require.Len(t, result.Records, 1)
		assert.Equal(t, "French", result.Records[0]["language"])
	})

	t.Run("Should fall back to the default for an absent source", func(t *testing.T) {
		matrix := NewMatrix()
		matrix.Transforms["instrumental"] = FieldTransform{Source: "Missing Column", Default: false}

		result := Execute([]core.Row{{"other_field": "value"}}, matrix)

		require.Len(t, result.Records, 1)
		assert.Equal(t, false, result.Records[0]["instrumental"])
	})

	t.Run("Should concatenate multiple sources skipping empty parts", func(t *testing.T) {
		matrix := NewMatrix()
		matrix.Transforms["title"] = FieldTransform{Sources: []string{"Title Prefix", "Title Main"}}

		result := Execute([]core.Row{
			{"Title Prefix": "The Amazing", "Title Main": "Journey"},
			{"Title Prefix": "", "Title Main": "Solo Title"},
		}, matrix)

		require.Len(t, result.Records, 2)
		assert.Equal(t, "The Amazing Journey", result.Records[0]["title"])
		assert.Equal(t, "Solo Title", result.Records[1]["title"])
	})

	t.Run("Should apply the default again when operations empty the value", func(t *testing.T) {
		matrix := NewMatrix()
		matrix.Transforms["creatorRole"] = FieldTransform{
			Source:     "Role",
			Operations: []Operation{{Type: OpMap, Mapping: map[string]string{"CA": "Composer"}}},
			Default:    "Composer",
		}

		result := Execute([]core.Row{{"Role": "ZZ"}}, matrix)

		require.Len(t, result.Records, 1)
		assert.Equal(t, "Composer", result.Records[0]["creatorRole"])
	})
}

func TestExecute_SplitRole(t *testing.T) {
	splitMatrix := func() *TransformationMatrix {
		matrix := NewMatrix()
		matrix.Transforms["iswc"] = FieldTransform{Source: "ISWC", Required: true}
		matrix.Transforms["creatorRole"] = FieldTransform{Source: "Role"}
		matrix.Transforms["creatorIpi"] = FieldTransform{
			Source:     "IPI",
			Operations: []Operation{{Type: OpToNumber}},
		}
		matrix.Expand = &ExpandConfig{
			Type:    ExpandSplitRole,
			Source:  "Role",
			Mapping: map[string]string{"C": "Composer", "A": "Author"},
		}
		return matrix
	}

	t.Run("Should fan a combined role out into one record per token", func(t *testing.T) {
		rows := []core.Row{{"ISWC": "T1234567890", "Role": "C+A", "IPI": "123"}}

		result := Execute(rows, splitMatrix())

		require.Len(t, result.Records, 2)
		assert.Equal(t, "Composer", result.Records[0]["creatorRole"])
		assert.Equal(t, "Author", result.Records[1]["creatorRole"])
		assert.Equal(t, int64(123), result.Records[0]["creatorIpi"])
	})

	t.Run("Should pass unmapped tokens through verbatim", func(t *testing.T) {
		rows := []core.Row{{"ISWC": "T1234567890", "Role": "C+X", "IPI": "123"}}

		result := Execute(rows, splitMatrix())

		require.Len(t, result.Records, 2)
		assert.Equal(t, "X", result.Records[1]["creatorRole"])
	})

	t.Run("Should not expand a single role", func(t *testing.T) {
		rows := []core.Row{{"ISWC": "T1234567890", "Role": "C", "IPI": "123"}}

		result := Execute(rows, splitMatrix())

		require.Len(t, result.Records, 1)
		assert.Equal(t, "C", result.Records[0]["creatorRole"])
	})

	t.Run("Should leave the original row untouched", func(t *testing.T) {
		row := core.Row{"ISWC": "T1234567890", "Role": "C+A", "IPI": "123"}

		Execute([]core.Row{row}, splitMatrix())

		assert.Equal(t, "C+A", row["Role"])
	})
}

func TestExecute_MultipleColumns(t *testing.T) {
	variantMatrix := func() *TransformationMatrix {
		matrix := NewMatrix()
		matrix.Transforms["iswc"] = FieldTransform{Source: "ISWC", Required: true}
		matrix.Transforms["creatorIpi"] = FieldTransform{Source: "IPI"}
		matrix.Transforms["creatorRole"] = FieldTransform{Constant: "Composer"}
		matrix.Expand = &ExpandConfig{
			Type: ExpandMultipleColumns,
			Variants: []ColumnVariant{
				{
					ConditionColumn: "Composer IPI",
					Overrides: map[string]FieldTransform{
						"creatorIpi":  {Source: "Composer IPI"},
						"creatorRole": {Constant: "Composer"},
					},
				},
				{
					ConditionColumn: "Author IPI",
					Overrides: map[string]FieldTransform{
						"creatorIpi":  {Source: "Author IPI"},
						"creatorRole": {Constant: "Author"},
					},
				},
			},
		}
		return matrix
	}

	t.Run("Should emit one record per matching variant", func(t *testing.T) {
		rows := []core.Row{{"ISWC": "T1234567890", "Composer IPI": "111", "Author IPI": "222"}}

		result := Execute(rows, variantMatrix())

		require.Len(t, result.Records, 2)
		assert.Equal(t, "111", result.Records[0]["creatorIpi"])
		assert.Equal(t, "Composer", result.Records[0]["creatorRole"])
		assert.Equal(t, "222", result.Records[1]["creatorIpi"])
		assert.Equal(t, "Author", result.Records[1]["creatorRole"])
	})

	t.Run("Should skip variants whose condition column is blank", func(t *testing.T) {
		rows := []core.Row{{"ISWC": "T1234567890", "Composer IPI": "111", "Author IPI": "  "}}

		result := Execute(rows, variantMatrix())

		require.Len(t, result.Records, 1)
		assert.Equal(t, "Composer", result.Records[0]["creatorRole"])
	})

	t.Run("Should fall back to the plain row when no variant matches", func(t *testing.T) {
		rows := []core.Row{{"ISWC": "T1234567890", "IPI": "999"}}

		result := Execute(rows, variantMatrix())

		require.Len(t, result.Records, 1)
		assert.Equal(t, "999", result.Records[0]["creatorIpi"])
		assert.Equal(t, "Composer", result.Records[0]["creatorRole"])
	})
}
