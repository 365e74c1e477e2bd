package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsProduceValidConfig(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
	assert.Equal(t, 400*1024, cfg.Compression.TargetBytes)
	assert.Equal(t, 1920, cfg.Compression.MaxWidth)
	assert.Equal(t, 85, cfg.Compression.InitialQuality)
	assert.Equal(t, 5, cfg.Compression.QualityStep)
	assert.Equal(t, 20, cfg.Compression.MinQuality)
	assert.Equal(t, 12, cfg.Media.UploadWorkers)
	assert.Equal(t, "media_library", cfg.Media.KeyPrefix)
	assert.Equal(t, 5, cfg.Storage.MaxAttempts)
}

func TestS3DriverDerivesPublicDomain(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("STORAGE_DRIVER", "S3")
	v.Set("STORAGE_BUCKET", "rd-media")
	v.Set("STORAGE_REGION", "eu-west-1")
	v.Set("STORAGE_PUBLIC_DOMAIN", "")

	cfg := fromViper(v)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "rd-media.s3.eu-west-1.amazonaws.com", cfg.Storage.PublicDomain)
}

func TestValidateRejectsBrokenStorage(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("STORAGE_DRIVER", "minio")
	v.Set("STORAGE_BUCKET", "media")

	cfg := fromViper(v)
	assert.ErrorContains(t, cfg.Validate(), "STORAGE_ENDPOINT")

	cfg.Storage.Driver = "ftp"
	assert.ErrorContains(t, cfg.Validate(), "unknown STORAGE_DRIVER")
}

func TestValidateRequiresBrokersWhenEventsEnabled(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("EVENTS_ENABLED", true)

	cfg := fromViper(v)
	assert.ErrorContains(t, cfg.Validate(), "EVENTS_BROKERS")
}

func TestDatabaseURL(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "media", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/media?sslmode=disable", cfg.URL())
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitAndTrim(" a:9092, ,b:9092 "))
}
