package expression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

var errEvaluationTimeout = errors.New("expression evaluation timed out")

type runtimeState struct {
	vm        *goja.Runtime
	variables map[string]interface{}
}

func (s *runtimeState) lookup(path string) (interface{}, bool) {
	return domain.LookupVariable(s.variables, path)
}

type Evaluator struct {
	config domain.ExpressionConfig
	cache  *Cache
	pool   sync.Pool
	logger *slog.Logger
}

var _ ports.ExpressionEvaluator = (*Evaluator)(nil)

func NewEvaluator(config domain.ExpressionConfig, logger *slog.Logger) (*Evaluator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := domain.DefaultExpressionConfig()
	if config.MaxLength <= 0 {
		config.MaxLength = defaults.MaxLength
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if config.MaxDepth <= 0 {
		config.MaxDepth = defaults.MaxDepth
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.CacheSize <= 0 {
		config.CacheSize = defaults.CacheSize
	}

	cache, err := NewCache(config.CacheSize)
	if err != nil {
		return nil, domain.NewConfigurationError("failed to create expression cache", err)
	}

	e := &Evaluator{
		config: config,
		cache:  cache,
		logger: logger.With("component", "expression-evaluator"),
	}
	e.pool.New = func() interface{} {
		state := &runtimeState{vm: goja.New()}
		if err := installBuiltins(state.vm, state); err != nil {
			e.logger.Error("failed to install expression builtins", "error", err)
		}
		return state
	}
	return e, nil
}

func (e *Evaluator) Cache() *Cache {
	return e.cache
}

// Compile runs every safety check and returns the cached program for source.
func (e *Evaluator) Compile(source string) (*CompiledExpression, error) {
	if compiled, ok := e.cache.Get(source); ok {
		return compiled, nil
	}

	compiled, err := e.compile(source)
	if err != nil {
		return nil, err
	}
	e.cache.Add(compiled)
	return compiled, nil
}

func (e *Evaluator) compile(source string) (*CompiledExpression, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return nil, expressionError(source, "expression is empty", nil)
	}
	if len(source) > e.config.MaxLength {
		return nil, expressionError(source, fmt.Sprintf("expression exceeds maximum length of %d", e.config.MaxLength), nil)
	}
	if err := checkBanned(source); err != nil {
		return nil, expressionError(source, err.Error(), nil)
	}

	tokens, err := tokenize(source)
	if err != nil {
		return nil, expressionError(source, err.Error(), nil)
	}
	if count := len(tokens) - 1; count > e.config.MaxTokens {
		return nil, expressionError(source, fmt.Sprintf("expression exceeds maximum token count of %d", e.config.MaxTokens), nil)
	}
	depth, err := maxParenDepth(tokens)
	if err != nil {
		return nil, expressionError(source, err.Error(), nil)
	}
	if depth > e.config.MaxDepth {
		return nil, expressionError(source, fmt.Sprintf("expression exceeds maximum nesting depth of %d", e.config.MaxDepth), nil)
	}

	result, err := parse(tokens, e.config.MaxDepth)
	if err != nil {
		return nil, expressionError(source, err.Error(), nil)
	}

	program, err := goja.Compile("expression", result.js, true)
	if err != nil {
		return nil, expressionError(source, "syntax error in expression", err)
	}

	return &CompiledExpression{
		Source:        source,
		Variables:     result.variables,
		Deterministic: result.deterministic,
		js:            result.js,
		program:       program,
	}, nil
}

func (e *Evaluator) Validate(source string) (bool, error) {
	if _, err := e.Compile(source); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Evaluator) Evaluate(ctx context.Context, source string, variables map[string]interface{}) (interface{}, error) {
	compiled, err := e.Compile(source)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, compiled, variables)
}

func (e *Evaluator) EvaluateBoolean(ctx context.Context, source string, variables map[string]interface{}) (bool, error) {
	value, err := e.Evaluate(ctx, source, variables)
	if err != nil {
		return false, err
	}
	return Truthy(value), nil
}

func (e *Evaluator) run(ctx context.Context, compiled *CompiledExpression, variables map[string]interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewCancelledError("expression evaluation cancelled", err)
	}

	state := e.pool.Get().(*runtimeState)
	state.variables = variables
	reusable := true
	defer func() {
		state.variables = nil
		if reusable {
			state.vm.ClearInterrupt()
			e.pool.Put(state)
		}
	}()

	timer := time.AfterFunc(e.config.Timeout, func() {
		state.vm.Interrupt(errEvaluationTimeout)
	})
	stopCtx := context.AfterFunc(ctx, func() {
		state.vm.Interrupt(ctx.Err())
	})

	value, err := state.vm.RunProgram(compiled.program)

	// An interrupt that raced the end of the run may still land on this
	// runtime, so it is not returned to the pool.
	if !timer.Stop() || !stopCtx() {
		reusable = false
	}

	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if cause, ok := interrupted.Value().(error); ok && cause != errEvaluationTimeout {
				return nil, domain.NewCancelledError("expression evaluation cancelled", cause)
			}
			e.logger.Warn("expression evaluation timed out", "expression", compiled.Source, "timeout", e.config.Timeout)
			return nil, expressionError(compiled.Source, "expression evaluation timed out", domain.ErrTimeout)
		}
		return nil, expressionError(compiled.Source, "expression evaluation failed", err)
	}

	return export(value), nil
}

// Truthy applies the boolean coercion used by EvaluateBoolean.
func Truthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	}
	if n, ok := toFloat(value); ok {
		return n != 0 && !math.IsNaN(n)
	}
	return true
}

func expressionError(source, message string, cause error) *domain.DomainError {
	return domain.NewExpressionError(message, cause,
		domain.WithComponent("expression"),
		domain.WithDetail("expression", source),
	)
}
