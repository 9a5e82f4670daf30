package service

//内置服务表，顺序即启动顺序
var defaultServices = []Descriptor{
	{Name: "can_bridge", MemoryLimitMB: 128, Command: "/opt/platform/bin/can_bridge", Wave: WavePriority},
	{Name: "vehicle_control", MemoryLimitMB: 256, Command: "/opt/platform/bin/vehicle_control", Wave: WavePriority},
	{Name: "safety_monitor", MemoryLimitMB: 128, Command: "/opt/platform/bin/safety_monitor", Wave: WavePriority},
	{Name: "localization", MemoryLimitMB: 512, Command: "/opt/platform/bin/localization", Wave: WaveNormal},
	{Name: "perception", MemoryLimitMB: 2048, Command: "/opt/platform/bin/perception --config /etc/platform/perception.yaml", Wave: WaveNormal},
	{Name: "planner", MemoryLimitMB: 1024, Command: "/opt/platform/bin/planner", Wave: WaveNormal},
	{Name: "telemetry", MemoryLimitMB: 256, Command: "/opt/platform/bin/telemetry", Wave: WaveNormal},
	{Name: "recorder", MemoryLimitMB: 0, Command: "/opt/platform/bin/recorder --dir /data/recordings", Wave: WaveNormal},
}

func Default() *Registry {
	r, err := NewRegistry(defaultServices)
	if err != nil {
		panic(err) // 内置表必须合法
	}
	return r
}
