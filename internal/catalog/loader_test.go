package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"redmig/internal/domain"
)

type fetcherFunc func(ctx context.Context) ([]byte, error)

func (f fetcherFunc) Dictionary(ctx context.Context) ([]byte, error) { return f(ctx) }

func staticDictionary(raw string) fetcherFunc {
	return func(context.Context) ([]byte, error) { return []byte(raw), nil }
}

const sampleDictionary = `[
	{"field_name": "record_id", "form_name": "demographics", "field_type": "text"},
	{"field_name": "sex", "form_name": "demographics", "field_type": "radio",
	 "select_choices_or_calculations": "1, Male | 2, Female | 3, Other",
	 "required_field": "y"},
	{"field_name": "consent", "form_name": "demographics", "field_type": "yesno"},
	{"field_name": "guardian_name", "form_name": "demographics", "field_type": "text",
	 "branching_logic": "[age] < 18"},
	{"field_name": "age", "form_name": "demographics", "field_type": "text",
	 "text_validation_min": "0", "text_validation_max": "120"},
	{"field_name": "visit_weight", "form_name": "visits", "field_type": "calc"},
	{"field_name": "broken", "form_name": "visits", "field_type": "text",
	 "branching_logic": "[[nonsense"}
]`

type LoaderSuite struct {
	suite.Suite
	ctx context.Context
}

func TestLoaderSuite(t *testing.T) {
	suite.Run(t, new(LoaderSuite))
}

func (s *LoaderSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *LoaderSuite) TestLoad() {
	cat, err := Load(s.ctx, staticDictionary(sampleDictionary),
		[]string{"baseline_arm_1", "followup_arm_1"}, []string{"visits"}, nil)
	s.Require().NoError(err)

	s.Run("fields keep dictionary order", func() {
		s.Equal([]string{"record_id", "sex", "consent", "guardian_name", "age", "visit_weight", "broken"},
			cat.FieldNames())
	})

	s.Run("choices parsed from pipe syntax", func() {
		sex, ok := cat.Field("sex")
		s.Require().True(ok)
		s.Equal(domain.FieldRadio, sex.Type)
		s.True(sex.Required)
		s.Equal(map[string]string{"1": "Male", "2": "Female", "3": "Other"}, sex.Choices)
	})

	s.Run("yesno maps to radio", func() {
		consent, ok := cat.Field("consent")
		s.Require().True(ok)
		s.Equal(domain.FieldRadio, consent.Type)
	})

	s.Run("calc maps to calculated", func() {
		w, ok := cat.Field("visit_weight")
		s.Require().True(ok)
		s.Equal(domain.FieldCalculated, w.Type)
	})

	s.Run("branching logic compiled", func() {
		g, ok := cat.Field("guardian_name")
		s.Require().True(ok)
		s.Require().NotNil(g.Branching)
		s.Equal([]string{"age"}, g.Branching.Fields)
	})

	s.Run("malformed branching treated as always visible", func() {
		b, ok := cat.Field("broken")
		s.Require().True(ok)
		s.Nil(b.Branching)
	})

	s.Run("validation bounds carried", func() {
		age, ok := cat.Field("age")
		s.Require().True(ok)
		s.Equal("0", age.MinValue)
		s.Equal("120", age.MaxValue)
	})

	s.Run("events and repeating forms wired", func() {
		s.True(cat.Longitudinal())
		s.True(cat.HasEvent("baseline_arm_1"))
		s.False(cat.HasEvent("closeout_arm_1"))
		s.True(cat.Repeats("visit_weight"))
		s.False(cat.Repeats("sex"))
	})
}

func (s *LoaderSuite) TestLoadErrors() {
	s.Run("fetch failure", func() {
		boom := errors.New("connection refused")
		_, err := Load(s.ctx, fetcherFunc(func(context.Context) ([]byte, error) {
			return nil, boom
		}), nil, nil, nil)
		s.Error(err)
	})

	s.Run("invalid json", func() {
		_, err := Load(s.ctx, staticDictionary("not json"), nil, nil, nil)
		s.Error(err)
	})

	s.Run("empty dictionary", func() {
		_, err := Load(s.ctx, staticDictionary("[]"), nil, nil, nil)
		s.Error(err)
	})
}
