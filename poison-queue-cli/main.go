package main

import (
	"fmt"
	"os"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/devkiraa/makeTicket-sub000/pubsub"
	"github.com/devkiraa/makeTicket-sub000/pubsub/poison"
)

func newQueue(c *cli.Context) (poison.Queue, func()) {
	rdb := redis.NewClient(&redis.Options{Addr: c.String("redis-addr")})

	publisher := pubsub.NewRedisPublisher(rdb, log.NewWatermill(logrus.NewEntry(logrus.StandardLogger())))

	return poison.NewQueue(rdb, c.String("topic"), publisher), func() {
		_ = publisher.Close()
		_ = rdb.Close()
	}
}

func main() {
	log.Init(logrus.WarnLevel)

	app := &cli.App{
		Name:  "poison-queue-cli",
		Usage: "Manage the registrations poison queue",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "redis-addr",
				EnvVars: []string{"REDIS_ADDR"},
				Value:   "localhost:6379",
			},
			&cli.StringFlag{
				Name:  "topic",
				Value: pubsub.PoisonQueueTopic,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "preview",
				Usage: "preview messages",
				Action: func(c *cli.Context) error {
					queue, closeQueue := newQueue(c)
					defer closeQueue()

					messages, err := queue.Preview(c.Context)
					if err != nil {
						return err
					}

					if len(messages) == 0 {
						fmt.Println("No messages")
						return nil
					}

					for _, m := range messages {
						fmt.Printf("%v\t%v\t%v\t%v\n", m.ID, m.Topic, m.Handler, m.Reason)
					}

					return nil
				},
			},
			{
				Name:      "remove",
				ArgsUsage: "<message_id>",
				Usage:     "remove message",
				Action: func(c *cli.Context) error {
					queue, closeQueue := newQueue(c)
					defer closeQueue()

					return queue.Remove(c.Context, c.Args().First())
				},
			},
			{
				Name:      "requeue",
				ArgsUsage: "<message_id>",
				Usage:     "send message back to its topic",
				Action: func(c *cli.Context) error {
					queue, closeQueue := newQueue(c)
					defer closeQueue()

					return queue.Requeue(c.Context, c.Args().First())
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("poison queue command failed")
	}
}
