package engine

import (
	"context"
	"iter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"

	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
)

// Params enumerates the fields a service-driver call needs; individual
// calls only populate the subset they need (StartedInstances/
// StoppedInstances for the batch calls, Instance/DesiredType for a
// resize).
type Params struct {
	Credentials aws.Credentials
	Account     string
	Role        string
	Region      string
	Trace       bool
	Logger      *zap.Logger

	StartedInstances []model.Instance
	StoppedInstances []model.Instance
	Instance         model.Instance
	DesiredType      string
}

// ServiceDriver is the cloud-service adapter contract: the engine
// never imports a concrete AWS service package directly, only this
// interface, so EC2 and RDS (and any future service) plug in
// identically.
type ServiceDriver interface {
	ServiceName() string
	AllowResize() bool

	SchedulableInstances(ctx context.Context, p Params) iter.Seq2[model.Instance, error]
	StartInstances(ctx context.Context, p Params) iter.Seq2[model.InstanceResult, error]
	StopInstances(ctx context.Context, p Params) iter.Seq2[model.InstanceResult, error]
	ResizeInstance(ctx context.Context, p Params) error
}
