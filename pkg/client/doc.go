/*
Package client is the HTTP client used by the riskfeed CLI.

	c, err := client.NewClient("127.0.0.1:4000")
	alerts, err := c.ListAlerts(10)

	err = c.Watch(ctx, func(ev client.Event) error {
		if ev.Alert != nil {
			fmt.Println(ev.Alert.ID)
		}
		return nil
	})

Non-2xx responses are returned as *APIError; a 404 matches ErrNotFound with
errors.Is.
*/
package client
