// # Loading
//
// A run configuration is usually a YAML file layered on top of the defaults:
//
//	cfg, err := config.LoadFile("convert.yaml")
//	if err != nil {
//		return err
//	}
//
// The command line then overrides individual keys through viper, using the
// dotted key names of the YAML file ("pipeline.ring_capacity") and the
// CUBECONV_ environment prefix (CUBECONV_PIPELINE_RING_CAPACITY).
//
// ## Environment Variable Substitution
//
// ${VAR_NAME} anywhere in the file is replaced before parsing:
//
//	storage:
//	  s3_bucket: ${DATASET_BUCKET}
//	  credentials_file: ${GOOGLE_APPLICATION_CREDENTIALS}
//
// Unset variables become empty strings.
//
// # Example Configuration
//
//	dataset:
//	  root: /data/town01
//	  remap_table: /data/town01/remap_fisheye.bin.zst
//	output:
//	  root: /data/town01_fisheye
//	  width: 1024
//	  height: 1024
//	  copy_side_files: true
//	pipeline:
//	  num_frames: 500
//	  camera_index: 0
//	  ring_capacity: 2
//	  write_capacity: 8
//	observability:
//	  log_level: info
//	  metrics_addr: ":9090"
package config
