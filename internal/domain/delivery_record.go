package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the terminal state of one delivery call.
type DeliveryStatus string

const (
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
)

// Phase names one stage of a delivery.
type Phase string

const (
	PhasePackage    Phase = "package"
	PhaseDistribute Phase = "distribute"
	PhaseVerify     Phase = "verify"
	PhaseStatistics Phase = "statistics"
)

// DeliveryRecord - the outcome of one delivery, stored for operators
type DeliveryRecord struct {
	ProductName          string         `json:"product_name" dynamodbav:"product_name"` // Partition Key
	ID                   string         `json:"id" dynamodbav:"id"`                     // Sort Key
	DestinationHost      string         `json:"destination_host" dynamodbav:"destination_host"`
	DestinationPath      string         `json:"destination_path" dynamodbav:"destination_path"`
	ArtifactPath         string         `json:"artifact_path" dynamodbav:"artifact_path"`
	Checksum             ChecksumRecord `json:"checksum" dynamodbav:"checksum"`
	Status               DeliveryStatus `json:"status" dynamodbav:"status"`
	FailedPhase          Phase          `json:"failed_phase,omitempty" dynamodbav:"failed_phase,omitempty"`
	PackageAttempts      int            `json:"package_attempts" dynamodbav:"package_attempts"`
	DistributionAttempts int            `json:"distribution_attempts" dynamodbav:"distribution_attempts"`
	Error                string         `json:"error,omitempty" dynamodbav:"error,omitempty"`
	StartedAt            time.Time      `json:"started_at" dynamodbav:"started_at"`
	FinishedAt           time.Time      `json:"finished_at" dynamodbav:"finished_at"`
}

// NewDeliveryRecord starts a record for a product delivery.
func NewDeliveryRecord(productName, host string) DeliveryRecord {
	return DeliveryRecord{
		ProductName:     productName,
		ID:              uuid.NewString(),
		DestinationHost: host,
		StartedAt:       time.Now().UTC(),
	}
}
