// Package factory provides a small generic registry used to instantiate modules
// from configuration. A module is a type string plus a map of raw settings;
// factories decode the settings into typed structs and return the concrete
// implementation.
//
//	reg := factory.NewRegistry[metrics.MetricsSink]()
//	reg.Register("influx", func(conf map[string]any) (metrics.MetricsSink, error) {
//	    var c struct{ URL string `json:"url"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newInfluxSink(c.URL), nil
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "influx", Conf: map[string]any{"url": "http://localhost:8086"}})
package factory
