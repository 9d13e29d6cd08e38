// Package command exposes sketch operations on keys of a store.Store.
//
// Every operation re-reads the key: a sketch is parsed from the stored bytes
// inside the store callback and dropped when the callback returns.
package command

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/RedisLabsModules/countminsketch/pkg/common/apperr"
	"github.com/RedisLabsModules/countminsketch/pkg/datastructs/sketch"
	"github.com/RedisLabsModules/countminsketch/pkg/logger"
	"github.com/RedisLabsModules/countminsketch/pkg/settings"
	"github.com/RedisLabsModules/countminsketch/pkg/store"
)

// Increment is one (item, delta) pair of an INCRBY.
type Increment struct {
	Item  string
	Delta int64
}

// KeyedIncrement is an Increment addressed to a key, as fed to the batcher.
type KeyedIncrement struct {
	Key string
	Increment
}

// DebugInfo describes a stored sketch.
type DebugInfo struct {
	Count int64
	Width int
	Depth int
	Size  int
}

// Engine runs sketch operations against a store.
type Engine struct {
	store        store.Store
	defaultWidth int
	defaultDepth int
	log          *zap.Logger
}

// NewEngine creates an Engine. Zero dimensions in cfg fall back to
// sketch.DefaultWidth and sketch.DefaultDepth.
func NewEngine(st store.Store, cfg settings.Sketch, log *zap.Logger) (*Engine, error) {
	if cfg.DefaultWidth == 0 {
		cfg.DefaultWidth = sketch.DefaultWidth
	}
	if cfg.DefaultDepth == 0 {
		cfg.DefaultDepth = sketch.DefaultDepth
	}
	w, d, err := sketch.PlanByDimensions(int64(cfg.DefaultWidth), int64(cfg.DefaultDepth))
	if err != nil {
		return nil, err
	}

	return &Engine{
		store:        st,
		defaultWidth: w,
		defaultDepth: d,
		log:          logger.OrNop(log).Named("cms"),
	}, nil
}

// InitByDim creates a width x depth sketch at key. The key must be empty.
func (e *Engine) InitByDim(ctx context.Context, key string, width, depth int64) error {
	return e.create(ctx, key, func() (int, int, error) {
		return sketch.PlanByDimensions(width, depth)
	})
}

// InitByErr creates a sketch at key sized for the given error and probability.
func (e *Engine) InitByErr(ctx context.Context, key string, epsilon, delta float64) error {
	return e.create(ctx, key, func() (int, int, error) {
		return sketch.PlanByErrorBound(epsilon, delta)
	})
}

func (e *Engine) create(ctx context.Context, key string, plan func() (int, int, error)) error {
	var w, d int
	err := e.store.Update(ctx, key, func(v *store.Value) error {
		if v.Kind() != store.KindEmpty {
			return apperr.New(apperr.KeyAlreadyExists, apperr.MsgKeyExists)
		}
		var err error
		if w, d, err = plan(); err != nil {
			return err
		}
		_, err = sketch.Format(v, w, d)
		return err
	})
	if err != nil {
		return apperr.FromError(err)
	}

	e.log.Info("sketch created", zap.String("key", key), zap.Int("width", w), zap.Int("depth", d))
	return nil
}

// IncrBy applies every increment to the sketch at key, creating it with the
// default dimensions if the key is empty. Either all increments are applied
// or none are.
func (e *Engine) IncrBy(ctx context.Context, key string, incrs []Increment) error {
	if len(incrs) == 0 {
		return apperr.New(apperr.InvalidParameter, apperr.MsgInvalidParam)
	}

	created := false
	err := e.store.Update(ctx, key, func(v *store.Value) error {
		created = false
		var (
			s   *sketch.Sketch
			err error
		)
		switch v.Kind() {
		case store.KindEmpty:
			s, err = sketch.Format(v, e.defaultWidth, e.defaultDepth)
			created = true
		case store.KindString:
			s, err = sketch.Parse(v.Bytes())
		default:
			return store.ErrWrongType
		}
		if err != nil {
			return err
		}

		for _, inc := range incrs {
			s.IncrementString(inc.Item, inc.Delta)
		}
		return nil
	})
	if err != nil {
		return apperr.FromError(err)
	}

	if created {
		e.log.Info("sketch created implicitly", zap.String("key", key),
			zap.Int("width", e.defaultWidth), zap.Int("depth", e.defaultDepth))
	}
	return nil
}

// Query returns one estimate per item, in order. found is false when the key
// does not exist.
func (e *Engine) Query(ctx context.Context, key string, items []string) (counts []int64, found bool, err error) {
	err = e.view(ctx, key, func(s *sketch.Sketch, _ int) {
		found = true
		counts = make([]int64, len(items))
		for i, item := range items {
			counts[i] = s.QueryString(item)
		}
	})
	if err != nil {
		return nil, false, err
	}
	return counts, found, nil
}

// Debug reports the header of the sketch at key. found is false when the key
// does not exist.
func (e *Engine) Debug(ctx context.Context, key string) (info *DebugInfo, found bool, err error) {
	err = e.view(ctx, key, func(s *sketch.Sketch, size int) {
		found = true
		info = &DebugInfo{
			Count: s.Count(),
			Width: s.Width(),
			Depth: s.Depth(),
			Size:  size,
		}
	})
	if err != nil {
		return nil, false, err
	}
	return info, found, nil
}

// view parses key under shared access and calls fn unless the key is empty.
func (e *Engine) view(ctx context.Context, key string, fn func(s *sketch.Sketch, size int)) error {
	err := e.store.View(ctx, key, func(v *store.Value) error {
		switch v.Kind() {
		case store.KindEmpty:
			return nil
		case store.KindOther:
			return store.ErrWrongType
		}
		s, err := sketch.Parse(v.Bytes())
		if err != nil {
			return err
		}
		fn(s, v.Len())
		return nil
	})
	if err != nil {
		return apperr.FromError(err)
	}
	return nil
}

// Consumer returns a batcher consumer that applies batches of keyed
// increments. Increments for the same key are grouped into one IncrBy in
// arrival order. A failing key does not stop the others; all failures are
// returned joined.
func (e *Engine) Consumer(ctx context.Context) func(batch []KeyedIncrement) error {
	return func(batch []KeyedIncrement) error {
		order := make([]string, 0)
		groups := make(map[string][]Increment)
		for _, ki := range batch {
			if _, ok := groups[ki.Key]; !ok {
				order = append(order, ki.Key)
			}
			groups[ki.Key] = append(groups[ki.Key], ki.Increment)
		}

		var errs []error
		for _, key := range order {
			if err := e.IncrBy(ctx, key, groups[key]); err != nil {
				e.log.Error("batch increment failed", zap.String("key", key),
					zap.Int("items", len(groups[key])), zap.Error(err))
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
