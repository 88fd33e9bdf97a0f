// Package edgescan embeds the edgescan inspection engine in a Go program.
//
// A Client stores runs in memory, Redis, Valkey or SQLite. Scan drives any
// stage and sensor that implement Actuator and Sensor, records the run and
// returns the features it found:
//
//	client, _ := edgescan.New(ctx, edgescan.WithSQLite("runs.db"))
//	defer client.Close()
//
//	run, _ := client.Scan(ctx, stage, sensor, edgescan.ScanRequest{
//	    Name:            "plate-7",
//	    Width:           60,
//	    Height:          40,
//	    SnakeSeparation: 4,
//	    FuzzySeparation: 1,
//	})
//	for _, f := range run.Features {
//	    fmt.Println(f.Kind, f.Rect)
//	}
//
// Stored runs are listed, fetched and deleted through Client.Runs.
package edgescan
