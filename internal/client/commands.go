package client

import (
	"context"
	"fmt"

	"github.com/danmuck/lvctl/internal/protocol/schema"
	"github.com/danmuck/lvctl/internal/protocol/value"
)

// Result is the data a command returned. Fault is set whenever the host sent
// an error cluster, including warnings with status=false.
type Result struct {
	Command    schema.Command
	VIPath     string
	Indicators value.Record
	Fault      *schema.ErrorCluster
}

func (r Result) Faulted() bool {
	return r.Fault != nil && r.Fault.Status
}

// Err returns a *RemoteFault for a faulted result and nil otherwise.
func (r Result) Err() error {
	if !r.Faulted() {
		return nil
	}
	return &RemoteFault{Command: r.Command, VIPath: r.VIPath, Cluster: *r.Fault}
}

func resultFrom(req schema.Request, resp schema.Response) Result {
	return Result{
		Command:    req.Command,
		VIPath:     req.VIPath,
		Indicators: resp.Indicators,
		Fault:      resp.Fault,
	}
}

type runOptions struct {
	runOptions     int32
	openFrontPanel bool
	indicatorNames []string
}

// RunOption adjusts a run_vi_synchronous request.
type RunOption func(*runOptions)

// WithRunOptions sets the host's numeric run options flags.
func WithRunOptions(flags int32) RunOption {
	return func(o *runOptions) { o.runOptions = flags }
}

// WithOpenFrontPanel asks the host to show the VI's front panel while it runs.
func WithOpenFrontPanel(open bool) RunOption {
	return func(o *runOptions) { o.openFrontPanel = open }
}

// WithIndicatorNames limits the returned indicators. No names returns all of
// them.
func WithIndicatorNames(names ...string) RunOption {
	return func(o *runOptions) { o.indicatorNames = append([]string(nil), names...) }
}

// RunVISynchronous runs the VI at viPath with controls and waits for it to
// finish. A remote fault is returned in Result, not as an error.
func (c *Client) RunVISynchronous(ctx context.Context, viPath string, controls value.Record, opts ...RunOption) (Result, error) {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}
	req := schema.Request{
		Command:  schema.CommandRunVI,
		VIPath:   viPath,
		Controls: controls,
		Params: []value.Field{
			value.F(schema.FieldRunOptions, value.Int32(o.runOptions)),
			value.F(schema.FieldOpenFrontPanel, value.Bool(o.openFrontPanel)),
			value.F(schema.FieldIndicatorNames, value.TextArray(o.indicatorNames...)),
		},
	}
	return c.do(ctx, req)
}

// SetControlsRequest sets control values on a VI inside a project target
// without running it.
type SetControlsRequest struct {
	ProjectPath               string
	TargetName                string
	VIPath                    string
	Controls                  value.Record
	IgnoreNonexistentControls bool
}

func (c *Client) SetControls(ctx context.Context, in SetControlsRequest) (Result, error) {
	req := schema.Request{
		Command:  schema.CommandSetControls,
		VIPath:   in.VIPath,
		Controls: in.Controls,
		Params: []value.Field{
			value.F(schema.FieldProjectPath, value.Text(in.ProjectPath)),
			value.F(schema.FieldTargetName, value.Text(in.TargetName)),
			value.F(schema.FieldIgnoreNonexistentControls, value.Bool(in.IgnoreNonexistentControls)),
		},
	}
	return c.do(ctx, req)
}

// GetIndicatorsRequest reads indicator values of a VI inside a project target
// without running it.
type GetIndicatorsRequest struct {
	ProjectPath    string
	TargetName     string
	VIPath         string
	IndicatorNames []string
}

func (c *Client) GetIndicators(ctx context.Context, in GetIndicatorsRequest) (Result, error) {
	req := schema.Request{
		Command: schema.CommandGetIndicators,
		VIPath:  in.VIPath,
		Params: []value.Field{
			value.F(schema.FieldProjectPath, value.Text(in.ProjectPath)),
			value.F(schema.FieldTargetName, value.Text(in.TargetName)),
			value.F(schema.FieldIndicatorNames, value.TextArray(in.IndicatorNames...)),
		},
	}
	return c.do(ctx, req)
}

// DescribeError asks the host for the human-readable text of ec. The lookup
// is read-only on the host.
func (c *Client) DescribeError(ctx context.Context, ec schema.ErrorCluster) (string, error) {
	req := schema.Request{
		Command:  schema.CommandDescribeError,
		Controls: ec.Record(),
	}
	resp, err := c.Call(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.Faulted() {
		return "", &RemoteFault{Command: req.Command, Cluster: *resp.Fault}
	}
	msg, err := resp.Indicators.Text(schema.FieldMessage)
	if err != nil {
		return "", callFailed(fmt.Errorf("%w: describe_error response: %w", schema.ErrInvalidDocument, err))
	}
	return msg, nil
}

// ResolveFault returns nil for a clean result. For a faulted one it describes
// the fault on this connection and returns the *RemoteFault with Description
// filled in; a failed lookup is joined to the fault.
func (c *Client) ResolveFault(ctx context.Context, r Result) error {
	err := r.Err()
	if err == nil {
		return nil
	}
	fault := err.(*RemoteFault)
	desc, derr := c.DescribeError(ctx, fault.Cluster)
	if derr != nil {
		return fmt.Errorf("%w (describe_error: %w)", fault, derr)
	}
	fault.Description = desc
	return fault
}

func (c *Client) do(ctx context.Context, req schema.Request) (Result, error) {
	resp, err := c.Call(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return resultFrom(req, resp), nil
}
