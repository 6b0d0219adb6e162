package expression

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/flowcore/internal/domain"
)

func newTestEvaluator(t *testing.T, config domain.ExpressionConfig) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(config, nil)
	require.NoError(t, err)
	return e
}

func TestEvaluateBooleanEquality(t *testing.T) {
	e := newTestEvaluator(t, domain.DefaultExpressionConfig())
	ctx := context.Background()

	ok, err := e.EvaluateBoolean(ctx, "status == 'active'", map[string]interface{}{"status": "active"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.EvaluateBoolean(ctx, "status == 'active'", map[string]interface{}{"status": "inactive"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateMissingVariableIsFalsy(t *testing.T) {
	e := newTestEvaluator(t, domain.DefaultExpressionConfig())

	ok, err := e.EvaluateBoolean(context.Background(), "approved", map[string]interface{}{})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.EvaluateBoolean(context.Background(), "missing == 'x'", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateOperators(t *testing.T) {
	e := newTestEvaluator(t, domain.DefaultExpressionConfig())
	vars := map[string]interface{}{
		"amount":   1500,
		"limit":    1000.0,
		"priority": "high",
		"tags":     []interface{}{"urgent", "finance"},
		"applicant": map[string]interface{}{
			"age":     42.0,
			"address": map[string]interface{}{"city": "Lisbon"},
		},
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"amount > limit", true},
		{"amount >= 1500 && priority == 'high'", true},
		{"amount < limit || priority != 'high'", false},
		{"!(amount < limit)", true},
		{"amount * 2 - 1000 == 2000", true},
		{"amount % 7 == 2", true},
		{"applicant.age >= 18", true},
		{"applicant.address.city == \"Lisbon\"", true},
		{"tags contains 'urgent'", true},
		{"contains(tags, 'legal')", false},
		{"len(tags) == 2", true},
		{"upper(priority) == 'HIGH'", true},
		{"startsWith(applicant.address.city, 'Lis')", true},
		{"max(1, amount, 3) == 1500", true},
		{"abs(-5) == 5", true},
		{"true && !false", true},
		{"null == missing", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := e.EvaluateBoolean(context.Background(), tt.expr, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateReturnsValue(t *testing.T) {
	e := newTestEvaluator(t, domain.DefaultExpressionConfig())

	value, err := e.Evaluate(context.Background(), "base + 5", map[string]interface{}{"base": 10})
	require.NoError(t, err)
	assert.EqualValues(t, 15, value)

	value, err = e.Evaluate(context.Background(), "lower(name)", map[string]interface{}{"name": "ADA"})
	require.NoError(t, err)
	assert.Equal(t, "ada", value)
}

func TestRejectsBannedConstructs(t *testing.T) {
	e := newTestEvaluator(t, domain.DefaultExpressionConfig())

	for _, expr := range []string{
		"eval('1')",
		"x.__proto__",
		"require('fs')",
		"constructor",
		"Function('return 1')",
		"globalThis",
		"name == 'process'",
		"__v('x')",
	} {
		t.Run(expr, func(t *testing.T) {
			ok, err := e.Validate(expr)
			assert.False(t, ok)
			require.Error(t, err)
			assert.True(t, domain.IsExpressionError(err))
			assert.Contains(t, err.Error(), "not allowed")
		})
	}
}

func TestRejectsForbiddenOperators(t *testing.T) {
	e := newTestEvaluator(t, domain.DefaultExpressionConfig())

	for _, expr := range []string{
		"a === b",
		"a !== b",
		"a & b",
		"a | b",
		"a ^ b",
		"a << 2",
		"a >> 2",
		"a = 1",
		"a ? b : c",
		"a; b",
		"a ** 2",
		"[1, 2]",
		"{}",
		"`tmpl`",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := e.Validate(expr)
			require.Error(t, err)
			assert.True(t, domain.IsExpressionError(err))
		})
	}
}

func TestRejectsUnknownFunction(t *testing.T) {
	e := newTestEvaluator(t, domain.DefaultExpressionConfig())

	_, err := e.Validate("fetch('http://x')")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `function "fetch" is not allowed`)

	_, err = e.Validate("len(a, b)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "called with 2 arguments")
}

func TestEnforcesLimits(t *testing.T) {
	e := newTestEvaluator(t, domain.ExpressionConfig{
		MaxLength: 40,
		MaxTokens: 7,
		MaxDepth:  3,
		Timeout:   time.Second,
		CacheSize: 8,
	})

	_, err := e.Validate(strings.Repeat("a", 41))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum length")

	_, err = e.Validate("a + b + c + d + e")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum token count")

	ok, err := e.Validate("(((a)))")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = e.Validate("   ")
	require.Error(t, err)
}

func TestEnforcesNestingDepth(t *testing.T) {
	e := newTestEvaluator(t, domain.ExpressionConfig{
		MaxLength: 80,
		MaxTokens: 50,
		MaxDepth:  3,
		Timeout:   time.Second,
		CacheSize: 8,
	})

	_, err := e.Validate("((((a))))")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum nesting depth")

	_, err = e.Validate("!(a && (b || (c == (d))))")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum nesting depth")

	ok, err := e.Validate("(a && (b || (c == d)))")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRejectsSyntaxErrors(t *testing.T) {
	e := newTestEvaluator(t, domain.DefaultExpressionConfig())

	for _, expr := range []string{
		"a ==",
		"(a",
		"a)",
		"'unterminated",
		"a b",
		"a..b",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := e.Validate(expr)
			require.Error(t, err)
			assert.True(t, domain.IsExpressionError(err))
		})
	}
}

func TestCachePromotesAndEvicts(t *testing.T) {
	e := newTestEvaluator(t, domain.ExpressionConfig{CacheSize: 2})

	_, err := e.Compile("a == 1")
	require.NoError(t, err)
	_, err = e.Compile("b == 2")
	require.NoError(t, err)

	_, err = e.Compile("a == 1")
	require.NoError(t, err)

	_, err = e.Compile("c == 3")
	require.NoError(t, err)

	cache := e.Cache()
	assert.Equal(t, 2, cache.Len())
	assert.True(t, cache.Contains("a == 1"))
	assert.False(t, cache.Contains("b == 2"))
	assert.True(t, cache.Contains("c == 3"))

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}

func TestCompiledMetadata(t *testing.T) {
	e := newTestEvaluator(t, domain.DefaultExpressionConfig())

	compiled, err := e.Compile("b.c > 1 && a == now()")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b.c"}, compiled.Variables)
	assert.False(t, compiled.Deterministic)

	compiled, err = e.Compile("x == 1")
	require.NoError(t, err)
	assert.True(t, compiled.Deterministic)
}

func mustCompile(t *testing.T, js string) *goja.Program {
	t.Helper()
	program, err := goja.Compile("test", js, true)
	require.NoError(t, err)
	return program
}

func TestEvaluationTimeout(t *testing.T) {
	e := newTestEvaluator(t, domain.ExpressionConfig{Timeout: 20 * time.Millisecond})

	compiled := &CompiledExpression{Source: "loop", program: mustCompile(t, "for(;;){}")}

	start := time.Now()
	_, err := e.run(context.Background(), compiled, nil)
	require.Error(t, err)
	assert.True(t, domain.IsExpressionError(err))
	assert.True(t, domain.IsTimeout(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestEvaluationCancelledMidRun(t *testing.T) {
	e := newTestEvaluator(t, domain.ExpressionConfig{Timeout: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	compiled := &CompiledExpression{Source: "loop", program: mustCompile(t, "for(;;){}")}
	_, err := e.run(ctx, compiled, nil)
	require.Error(t, err)
	assert.True(t, domain.IsCancelled(err))
}

func TestEvaluationCancelled(t *testing.T) {
	e := newTestEvaluator(t, domain.DefaultExpressionConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Evaluate(ctx, "a == 1", nil)
	require.Error(t, err)
	assert.True(t, domain.IsCancelled(err))
}

func TestRuntimeReusedAfterTimeout(t *testing.T) {
	e := newTestEvaluator(t, domain.ExpressionConfig{Timeout: 20 * time.Millisecond})

	compiled := &CompiledExpression{Source: "loop", program: mustCompile(t, "for(;;){}")}
	_, err := e.run(context.Background(), compiled, nil)
	require.Error(t, err)

	ok, err := e.EvaluateBoolean(context.Background(), "a == 1", map[string]interface{}{"a": 1})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(0))
	assert.False(t, Truthy(0.0))
	assert.True(t, Truthy("x"))
	assert.True(t, Truthy(int64(3)))
	assert.True(t, Truthy(map[string]interface{}{}))
}
