package starfile

import (
	"encoding/gob"
	"os"
)

func init() {
	gob.Register(TargetList{})
	gob.Register(Target{})
	gob.Register(ShellCmd{})
	gob.Register(TargetRef{})
}

// WriteSnapshot persists the parsed target list together with the option
// values that produced it. The bare listing command reads this back instead
// of re-evaluating the script.
func WriteSnapshot(file string, options map[string]string, list TargetList) error {
	handle, err := os.Create(file)
	if err != nil {
		return err
	}
	defer handle.Close()

	encoder := gob.NewEncoder(handle)
	err = encoder.Encode(options)
	if err != nil {
		return err
	}

	return encoder.Encode(list)
}

// ReadSnapshot loads a snapshot written by WriteSnapshot.
func ReadSnapshot(file string) (map[string]string, TargetList, error) {
	handle, err := os.Open(file)
	if err != nil {
		return nil, nil, err
	}
	defer handle.Close()

	decoder := gob.NewDecoder(handle)

	var options map[string]string
	err = decoder.Decode(&options)
	if err != nil {
		return nil, nil, err
	}

	var result TargetList
	err = decoder.Decode(&result)
	if err != nil {
		return options, nil, err
	}

	return options, result, nil
}
