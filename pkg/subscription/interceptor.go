package subscription

import (
	"context"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ResultInterceptor may replace a result right before it is sent.
type ResultInterceptor interface {
	InterceptResult(ctx context.Context, id string, result *ExecutionResult) (*ExecutionResult, error)
}

type ResultInterceptorFunc func(ctx context.Context, id string, result *ExecutionResult) (*ExecutionResult, error)

func (f ResultInterceptorFunc) InterceptResult(ctx context.Context, id string, result *ExecutionResult) (*ExecutionResult, error) {
	return f(ctx, id, result)
}

// ChainInterceptors runs the interceptors in order, each one receiving the
// output of the previous one.
func ChainInterceptors(interceptors ...ResultInterceptor) ResultInterceptor {
	return ResultInterceptorFunc(func(ctx context.Context, id string, result *ExecutionResult) (*ExecutionResult, error) {
		var err error
		for _, interceptor := range interceptors {
			if result, err = interceptor.InterceptResult(ctx, id, result); err != nil {
				return nil, err
			}
		}
		return result, nil
	})
}

// RedactFields removes the given gjson style paths from the data of every
// result. Paths that do not exist are skipped.
func RedactFields(paths ...string) ResultInterceptor {
	return ResultInterceptorFunc(func(_ context.Context, _ string, result *ExecutionResult) (*ExecutionResult, error) {
		if result == nil || len(result.Data) == 0 {
			return result, nil
		}
		data := result.Data
		redacted := false
		for _, path := range paths {
			if !gjson.GetBytes(data, path).Exists() {
				continue
			}
			out, err := sjson.DeleteBytes(data, path)
			if err != nil {
				return nil, err
			}
			data = out
			redacted = true
		}
		if !redacted {
			return result, nil
		}
		return &ExecutionResult{
			Data:       data,
			Errors:     result.Errors,
			Extensions: result.Extensions,
		}, nil
	})
}
