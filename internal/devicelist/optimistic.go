package devicelist

// RunOptimistic applies a speculative change, performs call and then either
// confirms the change with the authoritative result or rolls it back.
//
// If apply fails nothing else runs and its error is returned. Exactly one of
// confirm and rollback runs otherwise.
func RunOptimistic[T any](apply func() error, call func() (T, error), confirm func(T), rollback func(error)) error {
	if err := apply(); err != nil {
		return err
	}

	result, err := call()
	if err != nil {
		rollback(err)
		return err
	}

	confirm(result)
	return nil
}
