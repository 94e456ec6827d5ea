package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	. "extjob/pkg/models"
)

func TestEncoding(t *testing.T) {
	assert.True(t, Encoding("HEXBINARY").IsHexBinary())
	assert.True(t, EncodingHexBinary.IsHexBinary())
	assert.False(t, EncodingRaw.IsHexBinary())

	assert.Equal(t, EncodingHexBinary, Encoding("").OrDefault())
	assert.Equal(t, EncodingRaw, EncodingRaw.OrDefault())
}

func TestRunReport_LogText(t *testing.T) {
	assert.Equal(t, DefaultLog, RunReport{}.LogText())
	assert.Equal(t, "", RunReport{Log: String("")}.LogText())
	assert.Equal(t, "ok", RunReport{Log: String("ok")}.LogText())
}

func TestRunReport_Succeeded(t *testing.T) {
	assert.True(t, RunReport{Result: 0}.Succeeded())
	assert.False(t, RunReport{Result: 1}.Succeeded())
	assert.False(t, RunReport{Result: -1}.Succeeded())
}
