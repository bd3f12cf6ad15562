package commenter

// SampleSource is the example offered by "load sample": a function and a
// class, each containing a loop.
const SampleSource = `def calculate_fibonacci(n: int) -> list:
    fib = [0, 1]
    for i in range(2, n):
        fib.append(fib[i-1] + fib[i-2])
    return fib

class DataProcessor:
    def __init__(self, data: list):
        self.data = data

    def process(self) -> dict:
        result = {}
        for item in self.data:
            if item in result:
                result[item] += 1
            else:
                result[item] = 1
        return result`
