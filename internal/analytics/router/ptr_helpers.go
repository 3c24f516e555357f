package router

import "strings"

const nilUUID = "00000000-0000-0000-0000-000000000000"

func stringPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func uuidPtr(value string) *string {
	if value == nilUUID {
		return nil
	}
	return stringPtr(value)
}

func int64Ptr(value int64) *int64 {
	return &value
}
