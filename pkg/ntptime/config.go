package ntptime

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AndrewLester/ntptime/internal/ntp"
)

type Config struct {
	Server     string
	Port       string
	TOS        int
	Nameserver string

	Retries       uint
	RetryInterval time.Duration
	Poll          time.Duration // daemon only
	Pump          time.Duration
	SetClock      bool
}

const (
	DefaultServer = "pool.ntp.org"
	DefaultPoll   = 64 * time.Second
)

var ErrConfigParse = errors.New("config parse error")

func DefaultConfig() Config {
	return Config{
		Server:        DefaultServer,
		Port:          ntp.Port,
		Retries:       DefaultRetries,
		RetryInterval: DefaultRetryInterval,
		Poll:          DefaultPoll,
		Pump:          DefaultPump,
	}
}

// ParseConfig reads a config file on top of DefaultConfig.
func ParseConfig(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config at %s could not be read: %w", path, err)
	}
	defer file.Close()

	return ParseConfigReader(file)
}

func ParseConfigReader(reader io.Reader) (Config, error) {
	config := DefaultConfig()

	scanner := bufio.NewScanner(reader)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		arguments := strings.Fields(text)
		if len(arguments) == 0 {
			continue
		}

		var err error
		switch arguments[0] {
		case "server":
			err = parseServer(&config, arguments)
		case "nameserver":
			if len(arguments) != 2 {
				err = configParseError("nameserver takes exactly one address")
				break
			}
			config.Nameserver = arguments[1]
		case "retries":
			var retries int
			retries, err = singleInteger(arguments, 0)
			config.Retries = uint(retries)
		case "interval":
			var ms int
			ms, err = singleInteger(arguments, 1)
			config.RetryInterval = time.Duration(ms) * time.Millisecond
		case "poll":
			var seconds int
			seconds, err = singleInteger(arguments, 1)
			config.Poll = time.Duration(seconds) * time.Second
		case "pump":
			var ms int
			ms, err = singleInteger(arguments, 1)
			config.Pump = time.Duration(ms) * time.Millisecond
		case "setclock":
			if len(arguments) != 1 {
				err = configParseError("setclock takes no arguments")
			}
			config.SetClock = true
		default:
			err = configParseError("invalid command:", arguments[0])
		}
		if err != nil {
			return Config{}, fmt.Errorf("line %d: %w", line, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// ApplyEnvironment lets NTP_HOST and NTP_PORT override the configured
// server.
func (c *Config) ApplyEnvironment() {
	if host := os.Getenv("NTP_HOST"); host != "" {
		c.Server = host
	}
	if port := os.Getenv("NTP_PORT"); port != "" {
		c.Port = port
	}
}

// QueryOptions are the retry settings of c.
func (c Config) QueryOptions() QueryOptions {
	return QueryOptions{
		Retries:       c.Retries,
		RetryInterval: c.RetryInterval,
		Pump:          c.Pump,
	}
}

// Transport builds the UDP transport c describes.
func (c Config) Transport() *UDPTransport {
	options := []UDPTransportOption{WithTOS(c.TOS)}
	if c.Nameserver != "" {
		options = append(options, WithResolver(NewDNSResolver(c.Nameserver)))
	}
	return NewUDPTransport(c.Server, c.Port, options...)
}

func parseServer(config *Config, arguments []string) error {
	if len(arguments) < 2 {
		return configParseError("missing required argument \"address\"")
	}
	config.Server = arguments[1]

	port, err := stringArgument("port", config.Port, &arguments)
	if err != nil {
		return err
	}
	if number, err := strconv.Atoi(port); err != nil || number < 1 || number > 65535 {
		return configParseError("invalid port:", port)
	}
	config.Port = port

	tos, err := integerArgument("tos", 0, &arguments)
	if err != nil {
		return err
	}
	if tos < 0 || tos > 255 {
		return configParseError("tos must be between 0 and 255")
	}
	config.TOS = tos

	if len(arguments) > 2 {
		return configParseError("invalid arguments supplied to command. One was:", arguments[2])
	}
	return nil
}

func singleInteger(arguments []string, minimum int) (int, error) {
	if len(arguments) != 2 {
		return 0, configParseError(arguments[0], "takes exactly one integer")
	}
	value, err := strconv.Atoi(arguments[1])
	if err != nil {
		return 0, configParseError(arguments[0], "argument requires an integer value")
	}
	if value < minimum {
		return 0, configParseError(arguments[0], "must be at least", minimum)
	}
	return value, nil
}

func integerArgument(name string, initial int, arguments *[]string) (int, error) {
	valueStr, err := stringArgument(name, strconv.Itoa(initial), arguments)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, configParseError(name, "argument requires an integer value")
	}

	return value, nil
}

func stringArgument(name string, initial string, arguments *[]string) (string, error) {
	for i, argument := range *arguments {
		if i < 2 || name != argument {
			continue
		}
		if i == len(*arguments)-1 {
			return "", configParseError("no value supplied for argument:", argument)
		}

		value := (*arguments)[i+1]
		removeIndex(arguments, i)
		removeIndex(arguments, i)
		return value, nil
	}
	return initial, nil
}

func removeIndex[T any](s *[]T, index int) {
	ret := make([]T, 0)
	ret = append(ret, (*s)[:index]...)
	ret = append(ret, (*s)[index+1:]...)
	*s = ret
}

func configParseError(args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfigParse, strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}
