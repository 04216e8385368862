package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/app"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources/auth"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources/media"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources/posts"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources/scheduling"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources/tiers"
)

var (
	emailFlag = cli.StringFlag{
		Name:   "email",
		Usage:  "account email",
		EnvVar: "POSTSIVA_EMAIL",
	}
	passwordFlag = cli.StringFlag{
		Name:   "password",
		Usage:  "account password",
		EnvVar: "POSTSIVA_PASSWORD",
	}
)

func (r *runner) loginCmd() cli.Command {
	return cli.Command{
		Name:  "login",
		Usage: "sign in and store the session locally",
		Flags: []cli.Flag{emailFlag, passwordFlag},
		Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
			if err := required(c, "email", "password"); err != nil {
				return err
			}
			user, err := a.Auth.Login(r.ctx, c.String("email"), c.String("password"))
			if err != nil {
				return err
			}
			return out.item(user)
		}),
	}
}

func (r *runner) signupCmd() cli.Command {
	return cli.Command{
		Name:  "signup",
		Usage: "create an account and store the session locally",
		Flags: []cli.Flag{emailFlag, passwordFlag, cli.StringFlag{Name: "name", Usage: "full name"}},
		Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
			if err := required(c, "email", "password"); err != nil {
				return err
			}
			user, err := a.Auth.Signup(r.ctx, auth.SignupInput{
				Email:    c.String("email"),
				Password: c.String("password"),
				FullName: c.String("name"),
			})
			if err != nil {
				return err
			}
			return out.item(user)
		}),
	}
}

func (r *runner) logoutCmd() cli.Command {
	return cli.Command{
		Name:  "logout",
		Usage: "revoke the session and purge every cached user resource",
		Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
			if err := a.Auth.Logout(r.ctx); err != nil {
				return err
			}
			return out.status("logged_out")
		}),
	}
}

func (r *runner) whoamiCmd() cli.Command {
	return cli.Command{
		Name:  "whoami",
		Usage: "show the signed-in profile",
		Flags: []cli.Flag{refreshFlag},
		Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
			user, err := a.Auth.Me(r.ctx, readOptions(c))
			if err != nil {
				return err
			}
			return out.item(user)
		}),
	}
}

func (r *runner) personaCmd() cli.Command {
	return cli.Command{
		Name:  "persona",
		Usage: "inspect and build page personas",
		Subcommands: []cli.Command{
			{
				Name:  "get",
				Usage: "show the analyzed persona of a page",
				Flags: []cli.Flag{pageFlag, refreshFlag},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "page"); err != nil {
						return err
					}
					p, err := a.Persona.Get(r.ctx, c.String("page"), readOptions(c))
					if err != nil {
						return err
					}
					return out.item(p)
				}),
			},
			{
				Name:  "build",
				Usage: "analyze recent posts and rebuild the persona",
				Flags: []cli.Flag{pageFlag, cli.IntFlag{Name: "days", Usage: "days of history to analyze", Value: 30}},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "page"); err != nil {
						return err
					}
					p, err := a.Persona.Build(r.ctx, c.String("page"), c.Int("days"))
					if err != nil {
						return err
					}
					return out.item(p)
				}),
			},
			{
				Name:  "agent",
				Usage: "show the AI agent persona of a page",
				Flags: []cli.Flag{pageFlag, refreshFlag},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "page"); err != nil {
						return err
					}
					p, err := a.Persona.GetAIAgentPersona(r.ctx, c.String("page"), readOptions(c))
					if err != nil {
						return err
					}
					return out.item(p)
				}),
			},
			{
				Name:  "delete",
				Usage: "delete the persona of a page",
				Flags: []cli.Flag{pageFlag},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "page"); err != nil {
						return err
					}
					if err := a.Persona.Delete(r.ctx, c.String("page")); err != nil {
						return err
					}
					return out.status("deleted", "page_id", c.String("page"))
				}),
			},
		},
	}
}

func (r *runner) mediaCmd() cli.Command {
	platformFlag := cli.StringFlag{Name: "platform", Usage: "target platform"}
	return cli.Command{
		Name:  "media",
		Usage: "manage the media library",
		Subcommands: []cli.Command{
			{
				Name:  "list",
				Usage: "list uploaded media",
				Flags: []cli.Flag{platformFlag, limitFlag, cli.IntFlag{Name: "offset", Usage: "entries to skip"}, refreshFlag},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					resp, err := a.Media.List(r.ctx, media.ListParams{
						Platform: c.String("platform"),
						Limit:    c.Int("limit"),
						Offset:   c.Int("offset"),
					}, readOptions(c))
					if err != nil {
						return err
					}
					return out.list(resp.Media)
				}),
			},
			{
				Name:  "upload",
				Usage: "upload a file to the media library",
				Flags: []cli.Flag{fileFlag, platformFlag},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "file"); err != nil {
						return err
					}
					name, contentType, data, err := readUpload(c.String("file"))
					if err != nil {
						return err
					}
					item, err := a.Media.Upload(r.ctx, media.UploadInput{
						Platform:    c.String("platform"),
						Filename:    name,
						ContentType: contentType,
						Data:        data,
					})
					if err != nil {
						return err
					}
					return out.item(item)
				}),
			},
			{
				Name:  "delete",
				Usage: "delete a media item",
				Flags: []cli.Flag{idFlag},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "id"); err != nil {
						return err
					}
					if err := a.Media.Delete(r.ctx, c.String("id")); err != nil {
						return err
					}
					return out.status("deleted", "id", c.String("id"))
				}),
			},
		},
	}
}

func (r *runner) postsCmd() cli.Command {
	return cli.Command{
		Name:  "posts",
		Usage: "manage page posts",
		Subcommands: []cli.Command{
			{
				Name:  "list",
				Usage: "list posts of a page",
				Flags: []cli.Flag{pageFlag, cli.StringFlag{Name: "status", Usage: "draft, published or failed"}, limitFlag, refreshFlag},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "page"); err != nil {
						return err
					}
					resp, err := a.Posts.List(r.ctx, c.String("page"), posts.ListParams{
						Status: c.String("status"),
						Limit:  c.Int("limit"),
					}, readOptions(c))
					if err != nil {
						return err
					}
					return out.list(resp.Posts)
				}),
			},
			{
				Name:  "get",
				Usage: "show one post",
				Flags: []cli.Flag{idFlag, refreshFlag},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "id"); err != nil {
						return err
					}
					post, err := a.Posts.Get(r.ctx, c.String("id"), readOptions(c))
					if err != nil {
						return err
					}
					return out.item(post)
				}),
			},
			{
				Name:  "create",
				Usage: "create a draft or publish immediately",
				Flags: []cli.Flag{
					pageFlag,
					cli.StringFlag{Name: "message", Usage: "post text"},
					cli.StringFlag{Name: "link", Usage: "link to attach"},
					cli.StringSliceFlag{Name: "media", Usage: "media id to attach (repeatable)"},
					cli.BoolFlag{Name: "publish", Usage: "publish right away"},
				},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "page", "message"); err != nil {
						return err
					}
					post, err := a.Posts.Create(r.ctx, posts.CreateInput{
						PageID:   c.String("page"),
						Message:  c.String("message"),
						Link:     c.String("link"),
						MediaIDs: c.StringSlice("media"),
						Publish:  c.Bool("publish"),
					})
					if err != nil {
						return err
					}
					return out.item(post)
				}),
			},
			{
				Name:  "update",
				Usage: "edit a draft",
				Flags: []cli.Flag{
					pageFlag,
					idFlag,
					cli.StringFlag{Name: "message", Usage: "new post text"},
					cli.StringFlag{Name: "link", Usage: "new link"},
					cli.StringSliceFlag{Name: "media", Usage: "media id to attach (repeatable)"},
				},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "page", "id"); err != nil {
						return err
					}
					post, err := a.Posts.Update(r.ctx, c.String("id"), posts.UpdateInput{
						PageID:   c.String("page"),
						Message:  c.String("message"),
						Link:     c.String("link"),
						MediaIDs: c.StringSlice("media"),
					})
					if err != nil {
						return err
					}
					return out.item(post)
				}),
			},
			{
				Name:  "publish",
				Usage: "publish a draft",
				Flags: []cli.Flag{pageFlag, idFlag},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "page", "id"); err != nil {
						return err
					}
					post, err := a.Posts.Publish(r.ctx, c.String("page"), c.String("id"))
					if err != nil {
						return err
					}
					return out.item(post)
				}),
			},
			{
				Name:  "delete",
				Usage: "delete a post",
				Flags: []cli.Flag{pageFlag, idFlag},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "id"); err != nil {
						return err
					}
					if err := a.Posts.Delete(r.ctx, c.String("page"), c.String("id")); err != nil {
						return err
					}
					return out.status("deleted", "id", c.String("id"))
				}),
			},
			{
				Name:  "generate",
				Usage: "draft a post with AI (consumes credits)",
				Flags: []cli.Flag{
					pageFlag,
					cli.StringFlag{Name: "prompt", Usage: "what the post should be about"},
					cli.StringFlag{Name: "tone", Usage: "optional tone override"},
				},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "page", "prompt"); err != nil {
						return err
					}
					draft, err := a.Posts.Generate(r.ctx, posts.GenerateInput{
						PageID: c.String("page"),
						Prompt: c.String("prompt"),
						Tone:   c.String("tone"),
					})
					if err != nil {
						return err
					}
					return out.item(draft)
				}),
			},
		},
	}
}

func (r *runner) scheduleCmd() cli.Command {
	atFlag := cli.StringFlag{Name: "at", Usage: "publish time in RFC 3339, e.g. 2026-11-01T09:00:00Z"}
	return cli.Command{
		Name:  "schedule",
		Usage: "manage scheduled posts",
		Subcommands: []cli.Command{
			{
				Name:  "list",
				Usage: "list scheduled posts of a page",
				Flags: []cli.Flag{pageFlag, refreshFlag},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "page"); err != nil {
						return err
					}
					scheduled, err := a.Scheduling.List(r.ctx, c.String("page"), readOptions(c))
					if err != nil {
						return err
					}
					return out.list(scheduled)
				}),
			},
			{
				Name:  "create",
				Usage: "schedule a post",
				Flags: []cli.Flag{
					pageFlag,
					atFlag,
					cli.StringFlag{Name: "post", Usage: "existing draft id"},
					cli.StringFlag{Name: "message", Usage: "post text when no draft is given"},
					cli.StringSliceFlag{Name: "media", Usage: "media id to attach (repeatable)"},
				},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "page", "at"); err != nil {
						return err
					}
					at, err := parseTime(c.String("at"))
					if err != nil {
						return err
					}
					scheduled, err := a.Scheduling.Schedule(r.ctx, scheduling.ScheduleInput{
						PageID:      c.String("page"),
						PostID:      c.String("post"),
						Message:     c.String("message"),
						MediaIDs:    c.StringSlice("media"),
						ScheduledAt: at,
					})
					if err != nil {
						return err
					}
					return out.item(scheduled)
				}),
			},
			{
				Name:  "move",
				Usage: "change the publish time of a scheduled post",
				Flags: []cli.Flag{pageFlag, idFlag, atFlag},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "page", "id", "at"); err != nil {
						return err
					}
					at, err := parseTime(c.String("at"))
					if err != nil {
						return err
					}
					scheduled, err := a.Scheduling.Reschedule(r.ctx, c.String("page"), c.String("id"), at)
					if err != nil {
						return err
					}
					return out.item(scheduled)
				}),
			},
			{
				Name:  "cancel",
				Usage: "cancel a scheduled post",
				Flags: []cli.Flag{pageFlag, idFlag},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "page", "id"); err != nil {
						return err
					}
					if err := a.Scheduling.Cancel(r.ctx, c.String("page"), c.String("id")); err != nil {
						return err
					}
					return out.status("canceled", "id", c.String("id"))
				}),
			},
		},
	}
}

func parseTime(value string) (time.Time, error) {
	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: expected RFC 3339", value)
	}
	return at, nil
}

func (r *runner) tiersCmd() cli.Command {
	tierFlag := cli.StringFlag{Name: "tier", Usage: "tier id"}
	return cli.Command{
		Name:  "tiers",
		Usage: "subscription tiers and usage",
		Subcommands: []cli.Command{
			{
				Name:  "list",
				Usage: "list available tiers",
				Flags: []cli.Flag{refreshFlag},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					list, err := a.Tiers.List(r.ctx, readOptions(c))
					if err != nil {
						return err
					}
					return out.list(list)
				}),
			},
			{
				Name:  "usage",
				Usage: "show usage for the current period",
				Flags: []cli.Flag{refreshFlag},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					usage, err := a.Tiers.Usage(r.ctx, readOptions(c))
					if err != nil {
						return err
					}
					return out.item(usage)
				}),
			},
			{
				Name:  "subscribe",
				Usage: "subscribe to a tier",
				Flags: []cli.Flag{tierFlag},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "tier"); err != nil {
						return err
					}
					sub, err := a.Tiers.Subscribe(r.ctx, c.String("tier"))
					if err != nil {
						return err
					}
					return out.item(sub)
				}),
			},
			{
				Name:  "receipt",
				Usage: "upload a payment receipt for a tier",
				Flags: []cli.Flag{tierFlag, fileFlag},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "tier", "file"); err != nil {
						return err
					}
					name, contentType, data, err := readUpload(c.String("file"))
					if err != nil {
						return err
					}
					sub, err := a.Tiers.UploadReceipt(r.ctx, tiers.ReceiptInput{
						TierID:      c.String("tier"),
						Filename:    name,
						ContentType: contentType,
						Data:        data,
					})
					if err != nil {
						return err
					}
					return out.item(sub)
				}),
			},
		},
	}
}

func (r *runner) pagesCmd() cli.Command {
	return cli.Command{
		Name:  "pages",
		Usage: "connected facebook pages",
		Subcommands: []cli.Command{
			{
				Name:  "list",
				Usage: "list connected pages",
				Flags: []cli.Flag{refreshFlag},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					pages, err := a.OAuth.Pages(r.ctx, readOptions(c))
					if err != nil {
						return err
					}
					return out.list(pages)
				}),
			},
			{
				Name:  "connect-url",
				Usage: "print the facebook authorization url",
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					u, err := a.OAuth.ConnectURL(r.ctx)
					if err != nil {
						return err
					}
					return out.item(u)
				}),
			},
			{
				Name:  "callback",
				Usage: "complete the facebook authorization with the returned code",
				Flags: []cli.Flag{
					cli.StringFlag{Name: "code", Usage: "authorization code"},
					cli.StringFlag{Name: "state", Usage: "state returned with the code"},
				},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "code"); err != nil {
						return err
					}
					result, err := a.OAuth.Callback(r.ctx, c.String("code"), c.String("state"))
					if err != nil {
						return err
					}
					return out.list(result.Pages)
				}),
			},
			{
				Name:  "disconnect",
				Usage: "disconnect a page",
				Flags: []cli.Flag{pageFlag},
				Action: r.with(func(c *cli.Context, a *app.App, out *printer) error {
					if err := required(c, "page"); err != nil {
						return err
					}
					if err := a.OAuth.Disconnect(r.ctx, c.String("page")); err != nil {
						return err
					}
					return out.status("disconnected", "page_id", c.String("page"))
				}),
			},
		},
	}
}
