package identity

import "os"

// removeFile deletes a staged upload; a file that is already gone is not
// an error.
func removeFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
