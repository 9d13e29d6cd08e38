package command

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/RedisLabsModules/countminsketch/pkg/common/apperr"
	"github.com/RedisLabsModules/countminsketch/pkg/datastructs/sketch"
)

// Command names. Matching is case-insensitive and the "CMS." prefix is optional.
const (
	CmdInitByDim = "CMS.INITBYDIM"
	CmdInitByErr = "CMS.INITBYERR"
	CmdIncrBy    = "CMS.INCRBY"
	CmdQuery     = "CMS.QUERY"
	CmdDebug     = "CMS.DEBUG"
)

// ReplyOK is the simple-string reply of successful writes.
const ReplyOK = "OK"

const cmdPrefix = "CMS."

type handler func(ctx context.Context, args []string) (any, error)

type route struct {
	name  string
	arity func(argc int) bool
	run   handler
}

// Dispatcher turns argument vectors into Engine calls.
type Dispatcher struct {
	engine *Engine
	routes map[string]route
}

// NewDispatcher registers the five sketch commands against e.
func NewDispatcher(e *Engine) *Dispatcher {
	d := &Dispatcher{engine: e}
	d.routes = map[string]route{
		CmdInitByDim: {CmdInitByDim, exactly(4), d.initByDim},
		CmdInitByErr: {CmdInitByErr, exactly(4), d.initByErr},
		CmdIncrBy:    {CmdIncrBy, func(n int) bool { return n >= 4 && n%2 == 0 }, d.incrBy},
		CmdQuery:     {CmdQuery, func(n int) bool { return n >= 3 }, d.query},
		CmdDebug:     {CmdDebug, exactly(2), d.debug},
	}
	return d
}

func exactly(n int) func(int) bool {
	return func(argc int) bool { return argc == n }
}

// Execute runs one command. args[0] is the command name, args[1] the key.
//
// Replies are ReplyOK for writes, []int64 for QUERY and []string for DEBUG.
// QUERY and DEBUG on a missing key return a nil reply. Errors are always
// *apperr.AppError.
func (d *Dispatcher) Execute(ctx context.Context, args ...string) (any, error) {
	if len(args) == 0 {
		return nil, apperr.UnknownCommandError("")
	}

	name := strings.ToUpper(args[0])
	if !strings.HasPrefix(name, cmdPrefix) {
		name = cmdPrefix + name
	}
	r, ok := d.routes[name]
	if !ok {
		return nil, apperr.UnknownCommandError(args[0])
	}
	if !r.arity(len(args)) {
		return nil, apperr.ArityError(r.name)
	}
	return r.run(ctx, args)
}

func (d *Dispatcher) initByDim(ctx context.Context, args []string) (any, error) {
	width, ok := parseInteger(args[2])
	if !ok {
		return nil, apperr.InvalidParam(sketch.ParamWidth)
	}
	depth, ok := parseInteger(args[3])
	if !ok {
		return nil, apperr.InvalidParam(sketch.ParamDepth)
	}
	if err := d.engine.InitByDim(ctx, args[1], width, depth); err != nil {
		return nil, err
	}
	return ReplyOK, nil
}

func (d *Dispatcher) initByErr(ctx context.Context, args []string) (any, error) {
	epsilon, ok := parseFloat(args[2])
	if !ok {
		return nil, apperr.InvalidParam(sketch.ParamError)
	}
	delta, ok := parseFloat(args[3])
	if !ok {
		return nil, apperr.InvalidParam(sketch.ParamProbability)
	}
	if err := d.engine.InitByErr(ctx, args[1], epsilon, delta); err != nil {
		return nil, err
	}
	return ReplyOK, nil
}

func (d *Dispatcher) incrBy(ctx context.Context, args []string) (any, error) {
	// Every delta is validated before the key is touched.
	incrs := make([]Increment, 0, (len(args)-2)/2)
	for i := 2; i < len(args); i += 2 {
		delta, ok := parseInteger(args[i+1])
		if !ok {
			return nil, apperr.New(apperr.InvalidParameter, apperr.MsgNotInteger)
		}
		incrs = append(incrs, Increment{Item: args[i], Delta: delta})
	}
	if err := d.engine.IncrBy(ctx, args[1], incrs); err != nil {
		return nil, err
	}
	return ReplyOK, nil
}

func (d *Dispatcher) query(ctx context.Context, args []string) (any, error) {
	counts, found, err := d.engine.Query(ctx, args[1], args[2:])
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return counts, nil
}

func (d *Dispatcher) debug(ctx context.Context, args []string) (any, error) {
	info, found, err := d.engine.Debug(ctx, args[1])
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return []string{
		fmt.Sprintf("Count: %d", info.Count),
		fmt.Sprintf("Width: %d", info.Width),
		fmt.Sprintf("Depth: %d", info.Depth),
		fmt.Sprintf("Size: %d", info.Size),
	}, nil
}

// parseInteger accepts the canonical base-10 form of an int64: an optional
// minus sign, no leading zeros, no plus sign or surrounding space.
func parseInteger(s string) (int64, bool) {
	if s == "0" {
		return 0, true
	}
	digits := strings.TrimPrefix(s, "-")
	if digits == "" || digits[0] < '1' || digits[0] > '9' {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

// parseFloat accepts any finite or infinite float64; NaN is rejected.
func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
