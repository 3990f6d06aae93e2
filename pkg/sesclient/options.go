package sesclient

type Option func(*SESClient)

func Endpoint(endpoint string) Option {
	return func(c *SESClient) {
		c.endpoint = endpoint
	}
}

func StaticCredentials(accessKey, secretKey string) Option {
	return func(c *SESClient) {
		c.accessKey = accessKey
		c.secretKey = secretKey
	}
}
