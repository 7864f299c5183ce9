package main

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuervo-cloud/fleet-scheduler/internal/engine"
)

func TestEC2Tags_ConvertsEngineTagsToEC2Tags(t *testing.T) {
	out := ec2Tags([]engine.Tag{{Key: "Schedule", Value: "office-hours"}})
	require.Len(t, out, 1)
	assert.Equal(t, "Schedule", aws.ToString(out[0].Key))
	assert.Equal(t, "office-hours", aws.ToString(out[0].Value))
}

func TestEC2Tags_EmptyInputYieldsEmptySlice(t *testing.T) {
	out := ec2Tags(nil)
	assert.Len(t, out, 0)
}

func TestRDSTags_ConvertsEngineTagsToRDSTags(t *testing.T) {
	out := rdsTags([]engine.Tag{{Key: "scheduler:state", Value: "stopped"}})
	require.Len(t, out, 1)
	assert.Equal(t, "scheduler:state", aws.ToString(out[0].Key))
	assert.Equal(t, "stopped", aws.ToString(out[0].Value))
}

func TestCredentialsProvider_RetrieveReturnsConfiguredCredentials(t *testing.T) {
	want := aws.Credentials{AccessKeyID: "AKIA", SecretAccessKey: "secret", SessionToken: "token"}
	p := credentialsProvider{creds: want}

	got, err := p.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
