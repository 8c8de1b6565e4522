package server

import (
	"strings"

	"google.golang.org/protobuf/types/known/structpb"
)

func stringField(s *structpb.Struct, key string) string {
	return strings.TrimSpace(s.GetFields()[key].GetStringValue())
}

// boolField returns def when key is absent or not a bool.
func boolField(s *structpb.Struct, key string, def bool) bool {
	v, ok := s.GetFields()[key].GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return def
	}
	return v.BoolValue
}

func intField(s *structpb.Struct, key string, def int) int {
	v, ok := s.GetFields()[key].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return def
	}
	return int(v.NumberValue)
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
