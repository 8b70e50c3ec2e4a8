package analysis

// 从防御性解析出的 map 中做类型化字段提取
// 结构不符的条目被整条拒绝，不做强行转换

// stringField 提取字符串字段，缺失或类型不符返回空串
func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// floatField 提取数值字段，缺失或类型不符返回默认值
func floatField(m map[string]interface{}, key string, fallback float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

// intField 提取整数字段
func intField(m map[string]interface{}, key string) int {
	return int(floatField(m, key, 0))
}

// boolField 提取布尔字段
func boolField(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

// stringSliceField 提取字符串数组字段，忽略数组中的非字符串元素
func stringSliceField(m map[string]interface{}, key string) []string {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	var result []string
	for _, item := range raw {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

// objectSliceField 提取对象数组字段，整条拒绝非对象元素
func objectSliceField(m map[string]interface{}, key string) []map[string]interface{} {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	var result []map[string]interface{}
	for _, item := range raw {
		if obj, ok := item.(map[string]interface{}); ok {
			result = append(result, obj)
		}
	}
	return result
}

// objectField 提取嵌套对象字段
func objectField(m map[string]interface{}, key string) map[string]interface{} {
	if obj, ok := m[key].(map[string]interface{}); ok {
		return obj
	}
	return nil
}
