package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gonomen/domain/core"
	"gonomen/domain/dataset"
	"gonomen/domain/encoding"
	domformula "gonomen/domain/formula"
	"gonomen/domain/stats"
	"gonomen/internal"
	"gonomen/internal/formula"
	"gonomen/internal/testkit"
)

// MockDomainDataset is a testify mock of ports.DomainDataset
type MockDomainDataset struct {
	mock.Mock
}

func (m *MockDomainDataset) Load(ctx context.Context, domain core.DomainID, limit int) ([]dataset.Entity, error) {
	args := m.Called(ctx, domain, limit)
	entities, _ := args.Get(0).([]dataset.Entity)
	return entities, args.Error(1)
}

func (m *MockDomainDataset) Domains(ctx context.Context) ([]core.DomainID, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]core.DomainID)
	return ids, args.Error(1)
}

func newTestValidator(t *testing.T, kit *testkit.TestKit) *Validator {
	t.Helper()
	engine, err := formula.NewEngine()
	require.NoError(t, err)
	v, err := NewValidator(engine, kit.DomainDataset(), kit.FeatureExtractor(), WithLogger(internal.Discard))
	require.NoError(t, err)
	return v
}

func entities(kit *testkit.TestKit, domain core.DomainID, n int, seed int64) []dataset.Entity {
	names := kit.Names(n, seed)
	out := make([]dataset.Entity, n)
	for i, name := range names {
		out[i] = dataset.Entity{Name: name, Outcome: float64(i) / float64(n-1), Domain: domain}
	}
	return out
}

func TestValidate_ShortSampleWarning(t *testing.T) {
	v := newTestValidator(t, testkit.NewTestKit())

	report, err := v.Validate(context.Background(), domformula.Hybrid, []core.DomainID{"crypto"}, 500)
	require.NoError(t, err)

	require.Len(t, report.Domains, 1)
	assert.Equal(t, 400, report.Domains[0].Loaded)
	assert.Equal(t, 500, report.Domains[0].Requested)
	assert.True(t, report.HasWarning(stats.WarningShortSample))
	assert.GreaterOrEqual(t, report.OverallCorrelation, -1.0)
	assert.LessOrEqual(t, report.OverallCorrelation, 1.0)
	assert.GreaterOrEqual(t, report.ConsistencyScore, 0.0)
	assert.LessOrEqual(t, report.ConsistencyScore, 1.0)
}

func TestValidate_FullSampleHasNoWarnings(t *testing.T) {
	v := newTestValidator(t, testkit.NewTestKit())

	report, err := v.Validate(context.Background(), domformula.Hybrid, []core.DomainID{"crypto"}, 400)
	require.NoError(t, err)
	assert.Empty(t, report.Warnings)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, stats.DomainOK, report.Domains[0].Status)
	assert.Len(t, report.Fields, encoding.NumFields)
}

func TestValidate_PlantedSignalIsFound(t *testing.T) {
	v := newTestValidator(t, testkit.NewTestKit())

	// crypto outcomes follow harshness, which phonetic maps linearly onto y
	report, err := v.Validate(context.Background(), domformula.Phonetic, []core.DomainID{"crypto"}, 400)
	require.NoError(t, err)

	y, ok := report.Aggregate(encoding.FieldY)
	require.True(t, ok)
	assert.Greater(t, y.WeightedMeanAbsR, 0.3)
	assert.NotEmpty(t, report.BestField)
	assert.GreaterOrEqual(t, report.OverallCorrelation, y.WeightedMeanAbsR)
	assert.Contains(t, report.UniversalProperties, encoding.FieldY)

	fc, ok := report.Domains[0].Field(encoding.FieldY)
	require.True(t, ok)
	assert.Less(t, fc.PearsonP, 0.01)
	require.NotNil(t, fc.Classifier, "crypto is labeled")
	assert.Greater(t, fc.Classifier.Accuracy, 0.5)
}

func TestValidate_IsolatesFailingAndSmallDomains(t *testing.T) {
	kit := testkit.NewTestKit()
	ds := new(MockDomainDataset)
	ds.On("Load", mock.Anything, core.DomainID("big"), 100).Return(entities(kit, "big", 100, 1), nil)
	ds.On("Load", mock.Anything, core.DomainID("tiny"), 100).Return(entities(kit, "tiny", 10, 2), nil)
	ds.On("Load", mock.Anything, core.DomainID("broken"), 100).Return(nil, errors.New("connection refused"))

	engine, err := formula.NewEngine()
	require.NoError(t, err)
	v, err := NewValidator(engine, ds, kit.FeatureExtractor(), WithLogger(internal.Discard))
	require.NoError(t, err)

	report, err := v.Validate(context.Background(), domformula.Structural, []core.DomainID{"big", "tiny", "broken"}, 100)
	require.NoError(t, err)
	ds.AssertExpectations(t)

	assert.Equal(t, stats.DomainOK, report.Domains[0].Status)
	assert.Equal(t, stats.DomainInsufficientData, report.Domains[1].Status)
	assert.Equal(t, stats.DomainUnavailable, report.Domains[2].Status)
	assert.Equal(t, []core.DomainID{"big"}, report.EligibleDomains())
	assert.True(t, report.HasWarning(stats.WarningInsufficientData))
	assert.True(t, report.HasWarning(stats.WarningLoadFailed))
	assert.True(t, report.HasWarning(stats.WarningShortSample))

	for _, agg := range report.Fields {
		assert.Equal(t, 1, agg.EligibleDomains)
	}
}

func TestValidate_SkipsInvalidEntities(t *testing.T) {
	kit := testkit.NewTestKit()
	good := entities(kit, "mixed", 40, 3)
	bad := append(good, dataset.Entity{Name: "Overflow", Outcome: 2, Domain: "mixed"}, dataset.Entity{Name: "!!!", Outcome: 0.5, Domain: "mixed"})

	ds := new(MockDomainDataset)
	ds.On("Load", mock.Anything, core.DomainID("mixed"), 42).Return(bad, nil)

	engine, err := formula.NewEngine()
	require.NoError(t, err)
	v, err := NewValidator(engine, ds, kit.FeatureExtractor(), WithLogger(internal.Discard))
	require.NoError(t, err)

	report, err := v.Validate(context.Background(), domformula.Frequency, []core.DomainID{"mixed"}, 42)
	require.NoError(t, err)

	assert.Equal(t, 40, report.Domains[0].SampleSize)
	assert.True(t, report.HasWarning(stats.WarningInvalidEntity))
	assert.True(t, report.HasWarning(stats.WarningInvalidFeatures))
	assert.Contains(t, report.Skipped, stats.SkippedItem{Domain: "mixed", Entity: "Overflow", Reason: stats.WarningInvalidEntity})
	assert.Contains(t, report.Skipped, stats.SkippedItem{Domain: "mixed", Entity: "!!!", Reason: stats.WarningInvalidFeatures})
}

func TestValidate_Deterministic(t *testing.T) {
	domains := []core.DomainID{"crypto", "bands", "hurricanes"}
	a, err := newTestValidator(t, testkit.NewTestKit()).Validate(context.Background(), domformula.Hybrid, domains, 300)
	require.NoError(t, err)
	b, err := newTestValidator(t, testkit.NewTestKit()).Validate(context.Background(), domformula.Hybrid, domains, 300)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestValidate_DomainOrderDoesNotChangeAggregates(t *testing.T) {
	v := newTestValidator(t, testkit.NewTestKit())
	ctx := context.Background()

	a, err := v.Validate(ctx, domformula.Phonetic, []core.DomainID{"crypto", "bands"}, 300)
	require.NoError(t, err)
	b, err := v.Validate(ctx, domformula.Phonetic, []core.DomainID{"bands", "crypto"}, 300)
	require.NoError(t, err)

	assert.Equal(t, a.BestField, b.BestField)
	assert.InDelta(t, a.OverallCorrelation, b.OverallCorrelation, 1e-12)
	assert.InDelta(t, a.ConsistencyScore, b.ConsistencyScore, 1e-12)
	for i := range a.Fields {
		assert.InDelta(t, a.Fields[i].WeightedMeanAbsR, b.Fields[i].WeightedMeanAbsR, 1e-12)
	}
}

func TestValidate_RejectsInvalidArguments(t *testing.T) {
	v := newTestValidator(t, testkit.NewTestKit())
	ctx := context.Background()

	_, err := v.Validate(ctx, domformula.Hybrid, []core.DomainID{"crypto"}, 0)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = v.Validate(ctx, domformula.Hybrid, nil, 10)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = v.Validate(ctx, domformula.Hybrid, []core.DomainID{"crypto", "crypto"}, 10)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = v.Validate(ctx, domformula.Type(99), []core.DomainID{"crypto"}, 10)
	assert.ErrorIs(t, err, core.ErrUnknownFormula)
}

func TestValidateDefinition_InvalidDefinitionIsAnError(t *testing.T) {
	v := newTestValidator(t, testkit.NewTestKit())
	ctx := context.Background()
	corpus, err := v.Prepare(ctx, []core.DomainID{"crypto"}, 50)
	require.NoError(t, err)

	def := domformula.Default(domformula.Hybrid)
	def.Params[0] += 0.5
	_, err = v.ValidateDefinition(ctx, corpus, def)
	assert.ErrorIs(t, err, core.ErrInvalidFormula)
}

func TestValidate_Cancelled(t *testing.T) {
	v := newTestValidator(t, testkit.NewTestKit())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.Validate(ctx, domformula.Hybrid, []core.DomainID{"crypto", "bands"}, 100)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewValidator_RejectsBadConfig(t *testing.T) {
	kit := testkit.NewTestKit()
	engine, err := formula.NewEngine()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Threshold = 1.5
	_, err = NewValidator(engine, kit.DomainDataset(), kit.FeatureExtractor(), WithConfig(cfg))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = NewValidator(nil, kit.DomainDataset(), kit.FeatureExtractor())
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestBetterField(t *testing.T) {
	a := stats.FieldAggregate{Field: encoding.FieldHue, WeightedMeanAbsR: 0.4, WeightedVariance: 0.01}
	b := stats.FieldAggregate{Field: encoding.FieldX, WeightedMeanAbsR: 0.3, WeightedVariance: 0.0}
	assert.True(t, betterField(a, b))
	assert.False(t, betterField(b, a))

	c := stats.FieldAggregate{Field: encoding.FieldY, WeightedMeanAbsR: 0.4, WeightedVariance: 0.001}
	assert.True(t, betterField(c, a), "equal mean prefers lower variance")
	assert.False(t, betterField(a, a), "identical candidates keep canonical order")
}

func TestConsistency(t *testing.T) {
	assert.Equal(t, 0.0, consistency(stats.FieldAggregate{}))
	assert.InDelta(t, 0.9, consistency(stats.FieldAggregate{WeightedMeanAbsR: 0.5, WeightedVariance: 0.05}), 1e-12)
	assert.Equal(t, 0.0, consistency(stats.FieldAggregate{WeightedMeanAbsR: 0.1, WeightedVariance: 0.5}))
}
