package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_EmbeddedTables(t *testing.T) {
	tests := []struct {
		variant  string
		strategy Strategy
		template string
		modes    []Mode
	}{
		{
			variant:  VariantCompanyForm,
			strategy: StrategyLiteral,
			template: "templates/company_form.docx",
			modes:    []Mode{ModeCFF, ModeHP, ModeHPD},
		},
		{
			variant:  VariantSpec,
			strategy: StrategyTags,
			template: "templates/spec.docx",
			modes:    []Mode{ModeCFF, ModeHP},
		},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			table, err := Default(tt.variant)
			require.NoError(t, err)
			assert.Equal(t, tt.variant, table.Variant)
			assert.Equal(t, tt.strategy, table.Strategy)
			assert.Equal(t, tt.template, table.Template)

			catalog, err := Compile(table)
			require.NoError(t, err)
			assert.Equal(t, tt.modes, catalog.Modes())
		})
	}
}

func TestDefault_UnknownVariant(t *testing.T) {
	_, err := Default("brochure")
	assert.Error(t, err)
}

func TestDefault_ToleranceBands(t *testing.T) {
	tests := []struct {
		variant string
		mode    Mode
		sg, ri  float64
	}{
		{VariantCompanyForm, ModeCFF, 0.010, 0.010},
		{VariantCompanyForm, ModeHP, 0.010, 0.010},
		{VariantCompanyForm, ModeHPD, 0.010, 0.005},
		{VariantSpec, ModeCFF, 0.010, 0.010},
		{VariantSpec, ModeHP, 0.010, 0.005},
	}

	for _, tt := range tests {
		t.Run(tt.variant+"/"+string(tt.mode), func(t *testing.T) {
			table, err := Default(tt.variant)
			require.NoError(t, err)
			catalog, err := Compile(table)
			require.NoError(t, err)

			rs, err := catalog.Lookup(tt.mode)
			require.NoError(t, err)
			assert.InDelta(t, tt.sg, rs.SGDelta, 1e-12)
			assert.InDelta(t, tt.ri, rs.RIDelta, 1e-12)
		})
	}
}

func TestCatalog_LookupUnavailableMode(t *testing.T) {
	table, err := Default(VariantSpec)
	require.NoError(t, err)
	catalog, err := Compile(table)
	require.NoError(t, err)

	_, err = catalog.Lookup(ModeHPD)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CFF, HP")
}

func TestCompanyFormLiteralsShareOrder(t *testing.T) {
	table, err := Default(VariantCompanyForm)
	require.NoError(t, err)

	for _, m := range table.Modes {
		require.Len(t, m.Literals, 5, "mode %s", m.Mode)
		assert.Equal(t, Literal{Field: FieldProduct, Text: "ESTHETIC AROMA B"}, m.Literals[0])
		assert.Equal(t, Literal{Field: FieldDate, Text: "07. OCT. 2024"}, m.Literals[4])
		assert.Equal(t, "PALE YELLOW TO YELLOW", m.Defaults[FieldColor])
	}
}

func TestPatterns(t *testing.T) {
	table, err := Default(VariantCompanyForm)
	require.NoError(t, err)
	catalog, err := Compile(table)
	require.NoError(t, err)

	cff, err := catalog.Lookup(ModeCFF)
	require.NoError(t, err)
	hp, err := catalog.Lookup(ModeHP)
	require.NoError(t, err)

	t.Run("color spans newlines", func(t *testing.T) {
		m := cff.Color.FindStringSubmatch("Color :\n light amber\nAppearance: clear liquid")
		require.Len(t, m, 2)
		assert.Equal(t, "\n light amber\n", m[1])
	})

	t.Run("color stops at first closing anchor", func(t *testing.T) {
		m := cff.Color.FindStringSubmatch("COLOR: RED APPEARANCE: LIQUID COLOR: BLUE APPEARANCE:")
		require.Len(t, m, 2)
		assert.Equal(t, " RED ", m[1])
	})

	t.Run("color lookahead is bounded", func(t *testing.T) {
		text := "COLOR: " + strings.Repeat("x", 300) + " APPEARANCE:"
		assert.Nil(t, cff.Color.FindStringSubmatch(text))
	})

	t.Run("glyph modes require the marker", func(t *testing.T) {
		assert.Nil(t, hp.Color.FindStringSubmatch("COLOR : AMBER APPEARANCE :"))
		m := hp.Color.FindStringSubmatch("■ COLOR : DEEP AMBER ■ APPEARANCE :")
		require.Len(t, m, 2)
		assert.Equal(t, " DEEP AMBER ", m[1])
	})

	t.Run("numeric with temperature qualifier", func(t *testing.T) {
		m := cff.SG.FindStringSubmatch("SPECIFIC GRAVITY (20°C) : 0.912 ± 0.01")
		require.Len(t, m, 2)
		assert.Equal(t, "0.912", m[1])
	})

	t.Run("numeric with plus-minus spelled out", func(t *testing.T) {
		m := cff.RI.FindStringSubmatch("Refractive Index (20°C): 1.471 +/- 0.005")
		require.Len(t, m, 2)
		assert.Equal(t, "1.471", m[1])
	})

	t.Run("numeric without spaces", func(t *testing.T) {
		m := hp.SG.FindStringSubmatch("■SPECIFIC GRAVITY:0.950±0.02")
		require.Len(t, m, 2)
		assert.Equal(t, "0.950", m[1])
	})

	t.Run("numeric captures malformed base", func(t *testing.T) {
		m := cff.SG.FindStringSubmatch("SPECIFIC GRAVITY (20°C): ABC ± 0.01")
		require.Len(t, m, 2)
		assert.Equal(t, "ABC", m[1])
	})

	t.Run("numeric label does not cross lines", func(t *testing.T) {
		assert.Nil(t, cff.SG.FindStringSubmatch("SPECIFIC GRAVITY\nFLASH POINT: 0.9 ± 0.1"))
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	custom := []byte(`version: 7
variant: spec
template: templates/spec.docx
strategy: tags
modes:
  - mode: HP
    glyph: "■"
    color: {open: COLOUR, close: ODOUR}
    sg: {label: RELATIVE DENSITY, delta: 0.02}
    ri: {label: REFRACTIVE INDEX, delta: 0.002}
    defaults: {COLOR: CLEAR, SG: "1.000 ~ 1.040", RI: "1.400 ~ 1.404"}
`)
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, custom, 0o644))

	table, err := Load(path, VariantSpec)
	require.NoError(t, err)
	assert.Equal(t, 7, table.Version)

	_, err = Load(path, VariantCompanyForm)
	assert.Error(t, err, "variant mismatch must be rejected")

	table, err = Load("", VariantCompanyForm)
	require.NoError(t, err)
	assert.Equal(t, VariantCompanyForm, table.Variant)

	_, err = Load(filepath.Join(dir, "missing.yaml"), "")
	assert.Error(t, err)
}

func TestTable_Validate(t *testing.T) {
	valid := func() *Table {
		table, err := Default(VariantCompanyForm)
		require.NoError(t, err)
		return table
	}

	tests := []struct {
		name   string
		mutate func(*Table)
	}{
		{"zero version", func(t *Table) { t.Version = 0 }},
		{"empty template", func(t *Table) { t.Template = "" }},
		{"unknown strategy", func(t *Table) { t.Strategy = "merge" }},
		{"no modes", func(t *Table) { t.Modes = nil }},
		{"unknown mode", func(t *Table) { t.Modes[0].Mode = "XYZ" }},
		{"duplicate mode", func(t *Table) { t.Modes[1].Mode = t.Modes[0].Mode }},
		{"empty color anchor", func(t *Table) { t.Modes[0].Color.Close = " " }},
		{"zero delta", func(t *Table) { t.Modes[0].RI.Delta = 0 }},
		{"missing default", func(t *Table) { t.Modes[0].Defaults = map[string]string{"COLOR": "X"} }},
		{"missing literal", func(t *Table) { t.Modes[0].Literals = t.Modes[0].Literals[:4] }},
		{"duplicate literal text", func(t *Table) {
			lits := append([]Literal(nil), t.Modes[0].Literals...)
			lits[1].Text = lits[0].Text
			t.Modes[0].Literals = lits
		}},
		{"literal for unknown field", func(t *Table) {
			t.Modes[0].Literals = append(append([]Literal(nil), t.Modes[0].Literals...), Literal{Field: "ODOR", Text: "MILD"})
		}},
	}

	require.NoError(t, valid().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := valid()
			tt.mutate(table)
			assert.Error(t, table.Validate())
		})
	}
}

func TestIsKnownMode(t *testing.T) {
	assert.True(t, IsKnownMode("CFF"))
	assert.True(t, IsKnownMode("HPD"))
	assert.False(t, IsKnownMode("cff"))
	assert.False(t, IsKnownMode(""))
}

func TestVariants_HaveEmbeddedTables(t *testing.T) {
	for _, variant := range Variants {
		assert.True(t, IsKnownVariant(variant))

		table, err := Default(variant)
		require.NoError(t, err, variant)
		assert.Equal(t, variant, table.Variant)
	}
	assert.False(t, IsKnownVariant("brochure"))
	assert.False(t, IsKnownVariant(""))
}
