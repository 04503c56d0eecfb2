package domain

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// DecodeNodeData converts a raw builder payload into the typed data for t.
// Numbers and strings are converted weakly ("1000" decodes into a duration),
// and JSON objects given where JSON text is expected (api headers/body) are
// re-encoded as text.
func DecodeNodeData(t NodeType, raw map[string]any) (NodeData, error) {
	switch t {
	case NodeTypeMessage:
		return decodeInto[MessageData](raw)
	case NodeTypeBranch:
		return decodeInto[BranchData](raw)
	case NodeTypeForm:
		return decodeInto[FormData](raw)
	case NodeTypeSlotFilling:
		return decodeInto[SlotFillingData](raw)
	case NodeTypeAPI:
		return decodeInto[APIData](raw)
	case NodeTypeLLM:
		return decodeInto[LLMData](raw)
	case NodeTypeSetSlot:
		return decodeInto[SetSlotData](raw)
	case NodeTypeDelay:
		return decodeInto[DelayData](raw)
	case NodeTypeLink:
		return decodeInto[LinkData](raw)
	case NodeTypeIframe:
		return decodeInto[IframeData](raw)
	case NodeTypeToast:
		return decodeInto[ToastData](raw)
	case NodeTypeScenario:
		return decodeInto[GroupData](raw)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, t)
}

// DecodeNode builds a Node from a generic map (as produced by YAML or JSON
// decoders into map[string]any).
func DecodeNode(raw map[string]any) (Node, error) {
	id, _ := raw["id"].(string)
	if id == "" {
		return Node{}, fmt.Errorf("node missing id")
	}
	typ, _ := raw["type"].(string)
	parent, _ := raw["parentNode"].(string)

	data, _ := raw["data"].(map[string]any)
	nd, err := DecodeNodeData(NodeType(typ), data)
	if err != nil {
		return Node{}, fmt.Errorf("node %s: %w", id, err)
	}
	return Node{ID: id, Type: NodeType(typ), ParentID: parent, Data: nd}, nil
}

func decodeInto[T NodeData](raw map[string]any) (NodeData, error) {
	var out T
	if raw == nil {
		return out, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		DecodeHook:       jsonTextHook,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode %s data: %w", out.Kind(), err)
	}
	return out, nil
}

// jsonTextHook turns maps and slices into JSON text when the target is a string.
func jsonTextHook(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Map, reflect.Slice:
		b, err := json.Marshal(data)
		if err != nil {
			return data, nil
		}
		return string(b), nil
	}
	return data, nil
}
