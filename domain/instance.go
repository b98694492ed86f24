package domain

// InstanceType is the provisioning model of an application instance.
type InstanceType string

const (
	// InstanceCommon instances are shared by unrelated joiners up to their capacity.
	InstanceCommon InstanceType = "common"
	// InstancePrivate instances are provisioned per caller.
	InstancePrivate InstanceType = "private"
	// InstanceStatic instances are provisioned per caller and live as long as their node.
	InstanceStatic InstanceType = "static"
)

// DefaultInstanceCapacity is used when a Create reply carries no positive capacity.
const DefaultInstanceCapacity = 1
